package validator

import (
	"strings"
	"testing"
	"time"

	"turnera/pkg/logger"
	"turnera/pkg/model"
)

func testValidator() *ReservationValidator {
	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	return NewReservationValidator(log)
}

func validReserveRequest() *model.ReserveRequest {
	return &model.ReserveRequest{
		CustomerRef:    "conv-12345",
		ProfessionalID: "507f1f77bcf86cd799439011",
		ServiceIDs:     []string{"507f1f77bcf86cd799439021"},
		StartTime:      time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
		CustomerName:   "Ana Gomez",
	}
}

func TestValidateRequest_Valid(t *testing.T) {
	if err := testValidator().ValidateRequest(validReserveRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRequest_FieldErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(req *model.ReserveRequest)
		wantField string
	}{
		{
			name:      "missing customer ref",
			mutate:    func(req *model.ReserveRequest) { req.CustomerRef = "" },
			wantField: "CustomerRef",
		},
		{
			name:      "malformed professional id",
			mutate:    func(req *model.ReserveRequest) { req.ProfessionalID = "not-an-object-id" },
			wantField: "ProfessionalID",
		},
		{
			name:      "empty service list",
			mutate:    func(req *model.ReserveRequest) { req.ServiceIDs = nil },
			wantField: "ServiceIDs",
		},
		{
			name:      "malformed service id",
			mutate:    func(req *model.ReserveRequest) { req.ServiceIDs = []string{"zzz"} },
			wantField: "ServiceIDs",
		},
		{
			name:      "zero start time",
			mutate:    func(req *model.ReserveRequest) { req.StartTime = time.Time{} },
			wantField: "StartTime",
		},
		{
			name:      "single character name",
			mutate:    func(req *model.ReserveRequest) { req.CustomerName = "A" },
			wantField: "CustomerName",
		},
		{
			name:      "oversized notes",
			mutate:    func(req *model.ReserveRequest) { req.Notes = strings.Repeat("x", 501) },
			wantField: "Notes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validReserveRequest()
			tt.mutate(req)

			err := testValidator().ValidateRequest(req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("expected error mentioning %s, got: %v", tt.wantField, err)
			}
		})
	}
}

func TestValidateRequest_MinuteAlignment(t *testing.T) {
	req := validReserveRequest()
	req.StartTime = req.StartTime.Add(30 * time.Second)

	err := testValidator().ValidateRequest(req)
	if err == nil {
		t.Fatal("expected alignment error")
	}
	if !strings.Contains(err.Error(), "whole minute") {
		t.Errorf("expected alignment message, got: %v", err)
	}
}
