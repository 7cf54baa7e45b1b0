package protocol

import "strings"

// HealthPath is served by every node; clients poll it before calling a service.
const HealthPath = "/healthz"

// DetectionsStreamPath is the websocket endpoint of the camera node.
const DetectionsStreamPath = "/ws/detections"

// ServicePath returns the HTTP path a named service is mounted on.
func ServicePath(name string) string {
	return "/services/" + strings.Trim(name, "/")
}

// Ready builds a successful Response.
func Ready() Response {
	return Response{Ready: true}
}

// NotReady builds a failed Response carrying err's message.
func NotReady(err error) Response {
	resp := Response{Ready: false}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
