// Package observability provides metrics and logging utilities.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrMethod   = "method"
	attrEndpoint = "endpoint"
	attrStatus   = "status"
	attrStage    = "stage"
	attrSuccess  = "success"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func endpointAttr(path string) attribute.KeyValue {
	// Project and jobset names would explode cardinality
	// /jobset/myproj/default -> /jobset/{project}/{jobset}
	return attribute.String(attrEndpoint, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// Group status codes to reduce cardinality
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	group := fmt.Sprintf("%dxx", code/100)
	return attribute.String(attrStatus, group)
}

func transportStatusAttr() attribute.KeyValue {
	return attribute.String(attrStatus, "transport_error")
}

func stageAttr(stage string) attribute.KeyValue {
	return attribute.String(attrStage, stage)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

// normalizePath replaces project and jobset names with placeholders.
func normalizePath(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	switch {
	case len(segments) == 2 && segments[0] == "project":
		return "/project/{project}"
	case len(segments) == 3 && segments[0] == "jobset":
		return "/jobset/{project}/{jobset}"
	default:
		return path
	}
}
