package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	garden "garden_irrigation"
	"garden_irrigation/internal/models"
	"garden_irrigation/internal/relay"
	"garden_irrigation/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockMonitoring struct {
	status    models.ControllerStatus
	persisted models.ControllerState
	solar     garden.SolarReport
	err       error
}

func (m *mockMonitoring) GetStatus(ctx context.Context) (models.ControllerStatus, error) {
	return m.status, m.err
}
func (m *mockMonitoring) GetSolar(ctx context.Context) (garden.SolarReport, error) {
	return m.solar, m.err
}
func (m *mockMonitoring) GetPersisted(ctx context.Context) (models.ControllerState, error) {
	return m.persisted, m.err
}

type mockRelays struct {
	states    []models.RelayState
	submitErr error
	submitted []relay.Command
}

func (m *mockRelays) Submit(ctx context.Context, cmd relay.Command) error {
	m.submitted = append(m.submitted, cmd)
	if m.submitErr != nil {
		return m.submitErr
	}
	for i := range m.states {
		if m.states[i].Channel == cmd.Channel {
			m.states[i].On = cmd.On
		}
	}
	return nil
}
func (m *mockRelays) Apply(ctx context.Context, cmd relay.Command) error {
	return m.Submit(ctx, cmd)
}
func (m *mockRelays) States() []models.RelayState { return m.states }

type mockEventLog struct {
	resp     []models.IrrigationEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.IrrigationEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

type mockWeatherHistory struct {
	resp      []models.WeatherRecord
	err       error
	lastQuery garden.WeatherHistoryQuery
}

func (m *mockWeatherHistory) ListWeather(ctx context.Context, q garden.WeatherHistoryQuery) ([]models.WeatherRecord, error) {
	m.lastQuery = q
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// authed builds a request carrying a bearer token.
func authed(method, target string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	return req
}
