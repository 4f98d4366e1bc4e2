//go:build protogen

package grpcserver

import (
	"context"
	"time"

	"github.com/crewdesk/crewdesk/services/schedule-service/internal/availability"
	schedulev1 "github.com/crewdesk/crewdesk/protos/gen/schedule/v1"
	"google.golang.org/grpc"
)

type server struct {
	schedulev1.UnimplementedScheduleServiceServer
	resolver *availability.Resolver
}

func Register(grpcServer *grpc.Server, resolver *availability.Resolver) {
	schedulev1.RegisterScheduleServiceServer(grpcServer, &server{resolver: resolver})
}

func (s *server) CheckEligibility(ctx context.Context, req *schedulev1.EligibilityRequest) (*schedulev1.EligibilityResponse, error) {
	start, err := time.ParseInLocation("2006-01-02", req.GetStart(), time.UTC)
	if err != nil {
		return &schedulev1.EligibilityResponse{WorkerId: req.GetWorkerId(), CanSupportNow: false}, nil
	}
	end, err := time.ParseInLocation("2006-01-02", req.GetEnd(), time.UTC)
	if err != nil {
		return &schedulev1.EligibilityResponse{WorkerId: req.GetWorkerId(), CanSupportNow: false}, nil
	}

	ok, err := s.resolver.CanSupportNow(ctx, req.GetWorkerId(), start, end)
	if err != nil {
		return nil, err
	}
	return &schedulev1.EligibilityResponse{
		WorkerId:      req.GetWorkerId(),
		CanSupportNow: ok,
	}, nil
}
