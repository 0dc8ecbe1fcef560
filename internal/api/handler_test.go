package api

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/roach88/profilesync/internal/api/mocks"
	"github.com/roach88/profilesync/internal/metrics"
	"github.com/roach88/profilesync/internal/profile"
	"github.com/roach88/profilesync/internal/syncer"
	"github.com/roach88/profilesync/internal/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router      http.Handler
	ctrl        *gomock.Controller
	mockService *mocks.MockService
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockService = mocks.NewMockService(s.ctrl)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.SetOnline(true)

	s.router = New(s.mockService, logger, reg).Router()
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestListProfiles() {
	p := testutil.Profile(s.T(), "a", "Jo Doe", 30, "Oslo")
	updated := testutil.Epoch.Add(time.Minute)
	s.mockService.EXPECT().Snapshot().Return(syncer.State{
		Profiles: []profile.StoredProfile{{Profile: p, Decision: profile.DecisionAccepted, UpdatedAt: updated}},
		Online:   false,
		Phase:    syncer.PhaseIdle,
		CycleID:  "cycle-1",
		Err:      &syncer.SyncError{Kind: syncer.KindNetworkRefreshFailed},
	})

	rec := s.do(http.MethodGet, "/profiles", "")

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("application/json", rec.Header().Get("Content-Type"))

	var got StateView
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Require().Len(got.Profiles, 1)
	s.Equal("a", got.Profiles[0].ID)
	s.Equal("Jo Doe", got.Profiles[0].FullName)
	s.Equal("https://img.example.com/a.jpg", got.Profiles[0].ImageURL)
	s.Equal(profile.DecisionAccepted, got.Profiles[0].Decision)
	s.True(updated.Equal(got.Profiles[0].UpdatedAt))
	s.False(got.Online)
	s.Equal(syncer.PhaseIdle, got.Phase)
	s.Equal("Couldn't refresh from server. Working offline.", got.Error)
	s.Equal(syncer.KindNetworkRefreshFailed, got.ErrorKind)
}

func (s *HandlerSuite) TestListProfiles_EmptyIsArray() {
	s.mockService.EXPECT().Snapshot().Return(syncer.State{Profiles: []profile.StoredProfile{}, Phase: syncer.PhaseIdle})

	rec := s.do(http.MethodGet, "/profiles", "")

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"profiles":[]`)
	s.NotContains(rec.Body.String(), `"error"`)
}

func (s *HandlerSuite) TestRecordDecision() {
	s.mockService.EXPECT().RecordDecision(gomock.Any(), "a", profile.DecisionDeclined).Return(nil)

	rec := s.do(http.MethodPost, "/profiles/a/decision", `{"decision":"decline"}`)

	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *HandlerSuite) TestRecordDecision_BadRequests() {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "not valid json"},
		{"empty decision", `{"decision":""}`},
		{"unknown decision", `{"decision":"maybe"}`},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.do(http.MethodPost, "/profiles/a/decision", tt.body)
			assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
		})
	}
}

func (s *HandlerSuite) TestRecordDecision_SaveFailure() {
	s.mockService.EXPECT().RecordDecision(gomock.Any(), "a", profile.DecisionAccepted).
		Return(&syncer.SyncError{Kind: syncer.KindDecisionSaveFailed, Cause: errors.New("locked")})

	rec := s.do(http.MethodPost, "/profiles/a/decision", `{"decision":"accepted"}`)

	s.Equal(http.StatusInternalServerError, rec.Code)
	var got ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal("Failed to save your decision. Try again.", got.Error)
	s.Equal(string(syncer.KindDecisionSaveFailed), got.Kind)
	s.NotContains(rec.Body.String(), "locked", "causes are logged, not returned")
}

func (s *HandlerSuite) TestRefresh() {
	s.mockService.EXPECT().Refresh().Return(nil)

	rec := s.do(http.MethodPost, "/refresh", "")

	s.Equal(http.StatusAccepted, rec.Code)
}

func (s *HandlerSuite) TestRefresh_Closed() {
	s.mockService.EXPECT().Refresh().Return(syncer.ErrClosed)

	rec := s.do(http.MethodPost, "/refresh", "")

	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *HandlerSuite) TestClearError() {
	s.mockService.EXPECT().ClearError()

	rec := s.do(http.MethodDelete, "/error", "")

	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *HandlerSuite) TestHealth() {
	s.mockService.EXPECT().Snapshot().Return(syncer.State{Online: true, Phase: syncer.PhaseIdle})

	rec := s.do(http.MethodGet, "/healthz", "")

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok","online":true,"phase":"idle"}`, rec.Body.String())
}

func (s *HandlerSuite) TestMetrics() {
	rec := s.do(http.MethodGet, "/metrics", "")

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "profilesync_online 1")
}

func (s *HandlerSuite) TestUnknownRoute() {
	rec := s.do(http.MethodGet, "/nope", "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func TestNew_NilGathererDisablesMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	router := New(mocks.NewMockService(ctrl), nil, nil).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
