// Package loadgen drives a running service with synthetic assessments
// submitted as plan jobs and checks that plans come back.
package loadgen

import (
	"runtime"
	"time"

	"github.com/okian/examintel/internal/domain/gap"
)

const (
	defaultAssessments  = 1000
	defaultTimeout      = 30 * time.Second
	defaultVerifySample = 20
	defaultWaitTimeout  = 2 * time.Minute
	pollInterval        = 250 * time.Millisecond
	percent             = 100
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL      string        // service base URL
	Assessments  int           // number of assessments to submit
	Workers      int           // concurrent submitters
	Timeout      time.Duration // per-request timeout
	VerifySample int           // accepted jobs whose plans are awaited
	WaitTimeout  time.Duration // how long to wait for sampled plans
	Seed         uint64        // generator seed; equal seeds give equal assessments
}

// DefaultConfig returns a config for a local service.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "http://localhost:9080",
		Assessments:  defaultAssessments,
		Workers:      runtime.NumCPU() * 2,
		Timeout:      defaultTimeout,
		VerifySample: defaultVerifySample,
		WaitTimeout:  defaultWaitTimeout,
		Seed:         1,
	}
}

// Request mirrors the body accepted by POST /plans/jobs.
type Request struct {
	ID         string       `json:"id"`
	Answers    []gap.Answer `json:"answers"`
	TotalHours float64      `json:"total_hours"`
	Days       int          `json:"days"`
}

// Stats holds run statistics.
type Stats struct {
	Generated int
	Submitted int
	Accepted  int
	Duplicate int
	Rejected  int // 429 and 503
	Failed    int
	Verified  int
	Missing   int
	Duration  time.Duration
}

// SuccessRate is the share of submissions that were accepted, in percent.
func (s *Stats) SuccessRate() float64 {
	if s.Submitted == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Submitted) * percent
}
