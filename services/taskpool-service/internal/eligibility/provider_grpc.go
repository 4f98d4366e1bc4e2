//go:build protogen

package eligibility

import (
	"context"
	"time"

	"github.com/crewdesk/crewdesk/libs/grpcx"
	schedulev1 "github.com/crewdesk/crewdesk/protos/gen/schedule/v1"
)

type grpcProvider struct {
	client schedulev1.ScheduleServiceClient
}

// NewProvider prefers the gRPC transport when an address is configured and
// falls back to HTTP otherwise.
func NewProvider(httpBaseURL, grpcAddr string) (Provider, error) {
	if grpcAddr != "" {
		conn, err := grpcx.Dial(context.Background(), grpcAddr, grpcx.DialOptions{Timeout: 3 * time.Second})
		if err != nil {
			return nil, err
		}
		return &grpcProvider{client: schedulev1.NewScheduleServiceClient(conn)}, nil
	}
	if httpBaseURL == "" {
		return nil, nil
	}
	return NewHTTPProvider(httpBaseURL), nil
}

func (p *grpcProvider) CanSupport(ctx context.Context, workerID string, start, end string) (bool, error) {
	resp, err := p.client.CheckEligibility(ctx, &schedulev1.EligibilityRequest{
		WorkerId: workerID,
		Start:    start,
		End:      end,
	})
	if err != nil {
		return false, err
	}
	return resp.GetCanSupportNow(), nil
}
