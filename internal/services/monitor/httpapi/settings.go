package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/domain/channel"
	domain "github.com/NordCoder/Uptimer/internal/domain/schedule"
	"github.com/NordCoder/Uptimer/internal/obs"
	"github.com/NordCoder/Uptimer/internal/services/monitor/schedule"
)

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid JSON body"))
		return false
	}
	return true
}

func scheduleStatus(err error) int {
	switch {
	case errors.Is(err, schedule.ErrInvalidInterval),
		errors.Is(err, schedule.ErrInvalidRetries),
		errors.Is(err, schedule.ErrInvalidTimezone),
		errors.Is(err, schedule.ErrMissingID),
		errors.Is(err, schedule.ErrNothingToUpdate):
		return http.StatusBadRequest
	case errors.Is(err, schedule.ErrNoSchedule):
		return http.StatusNotFound
	case errors.Is(err, schedule.ErrScheduleExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrScheduler):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var scheduleMessages = []struct {
	err error
	msg string
}{
	{schedule.ErrInvalidInterval, "Invalid interval. Minimum is 1 minute."},
	{schedule.ErrInvalidRetries, "Retries must be between 0 and 5."},
	{schedule.ErrInvalidTimezone, "Invalid timezone"},
	{schedule.ErrMissingID, "Schedule ID is required"},
	{schedule.ErrNothingToUpdate, "No valid update parameters provided"},
	{schedule.ErrScheduleExists, "A monitor check schedule already exists"},
	{schedule.ErrNoSchedule, "No monitor check schedule found"},
	{schedule.ErrSiteNotConfigured, "Site URL not configured"},
}

// scheduleMessage is the operator-facing text for a schedule error.
func scheduleMessage(err error) string {
	for _, m := range scheduleMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return sentence(err.Error())
}

func (s *Server) scheduleError(w http.ResponseWriter, r *http.Request, err error) {
	code := scheduleStatus(err)
	if code >= http.StatusInternalServerError {
		obs.WithTrace(r.Context(), s.Log).Error("schedule operation", zap.Int("status", code), zap.Error(err))
	}
	writeJSON(w, code, errorBody(scheduleMessage(err)))
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	info, err := s.Schedules.Current(r.Context())
	if errors.Is(err, schedule.ErrNoSchedule) {
		writeJSON(w, http.StatusOK, map[string]any{"schedule": nil, "message": scheduleMessage(err)})
		return
	}
	if err != nil {
		s.scheduleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule": info})
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IntervalMinutes int `json:"intervalMinutes"`
	}
	if !decode(w, r, &body) {
		return
	}
	created, err := s.Schedules.Create(r.Context(), body.IntervalMinutes)
	if err != nil {
		s.scheduleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"scheduleId":      created.ID,
		"cron":            created.Cron,
		"intervalMinutes": created.IntervalMinutes,
	})
}

type updateResponse struct {
	Success bool `json:"success"`
	*schedule.UpdateResult
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req schedule.UpdateRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.Schedules.Update(r.Context(), req)
	if err != nil {
		s.scheduleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updateResponse{Success: true, UpdateResult: res})
}

type testRequest struct {
	ChannelID *int64          `json:"channelId"`
	Type      channel.Type    `json:"type"`
	Config    json.RawMessage `json:"config"`
}

func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if !decode(w, r, &req) {
		return
	}

	var err error
	switch {
	case req.ChannelID != nil:
		err = s.Channels.TestChannel(r.Context(), *req.ChannelID)
		if errors.Is(err, channel.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("Channel not found"))
			return
		}
	case req.Type != "" && len(req.Config) > 0 && string(req.Config) != "null":
		err = s.Channels.Test(r.Context(), req.Type, req.Config)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("Either channelId or type+config required"))
		return
	}

	if err != nil {
		obs.WithTrace(r.Context(), s.Log).Info("test notification failed", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": sentence(err.Error())})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Test notification sent!"})
}
