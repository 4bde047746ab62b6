package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/replicas"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/social"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/store"
)

type stubCodedError struct {
	code string
	err  error
}

func (e stubCodedError) Error() string { return e.code }
func (e stubCodedError) Unwrap() error { return e.err }
func (e stubCodedError) Code() string  { return e.code }

func TestClassifyError(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "malformed", err: fmt.Errorf("%w: empty", social.ErrMalformedRequest), wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "unknown user", err: replicas.ErrUnknownUser, wantStatus: http.StatusNotFound, wantCode: "unknown_user"},
		{name: "invalid assignment", err: replicas.ErrInvalidAssignment, wantStatus: http.StatusConflict, wantCode: "invalid_assignment"},
		{name: "outage", err: replicas.ErrPairUnavailable, wantStatus: http.StatusServiceUnavailable, wantCode: "pair_unavailable"},
		{name: "store", err: store.ErrStoreUnavailable, wantStatus: http.StatusServiceUnavailable, wantCode: "store_unavailable"},
		{name: "service code wins", err: stubCodedError{code: "social.append_chat.store_read_failed", err: store.ErrStoreUnavailable}, wantStatus: http.StatusServiceUnavailable, wantCode: "social.append_chat.store_read_failed"},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			status, code := classifyError(testCase.err)
			if status != testCase.wantStatus || code != testCase.wantCode {
				t.Fatalf("got (%d, %q), want (%d, %q)", status, code, testCase.wantStatus, testCase.wantCode)
			}
		})
	}
}
