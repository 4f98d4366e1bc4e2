//go:build !protogen

package eligibility

// NewProvider wires the schedule-service dependency. Without generated
// gRPC stubs the HTTP transport is used; grpcAddr is ignored.
func NewProvider(httpBaseURL, _ string) (Provider, error) {
	if httpBaseURL == "" {
		return nil, nil
	}
	return NewHTTPProvider(httpBaseURL), nil
}
