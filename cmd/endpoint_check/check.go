package main

import (
	"context"

	"servechat/internal/service"
)

type endpointResult struct {
	service.EndpointTestResult
	Ready bool
}

type checkReport struct {
	Results  []endpointResult
	ReadyErr error
	Passed   int
	Failed   int
}

// OK exige al menos un endpoint probado y ninguno fallido.
func (r checkReport) OK() bool {
	return len(r.Results) > 0 && r.Failed == 0
}

type endpointChecker interface {
	Catalog() service.EndpointCatalog
	TestEndpoint(ctx context.Context, endpoint string) service.EndpointTestResult
	ReadyEndpoints(ctx context.Context) ([]string, error)
}

func runChecks(ctx context.Context, chat endpointChecker) checkReport {
	var report checkReport

	ready := make(map[string]bool)
	names, err := chat.ReadyEndpoints(ctx)
	if err != nil {
		report.ReadyErr = err
	}
	for _, n := range names {
		ready[n] = true
	}

	for _, ep := range chat.Catalog().Endpoints {
		if ep.ID == "" {
			continue
		}
		res := endpointResult{EndpointTestResult: chat.TestEndpoint(ctx, ep.ID), Ready: ready[ep.ID]}
		if res.OK {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, res)
	}
	return report
}
