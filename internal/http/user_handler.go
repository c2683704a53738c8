package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"babycare-backend/internal/models"
	"babycare-backend/internal/pairing"
	"babycare-backend/internal/repository"

	"go.uber.org/zap"
)

// Pairer 扫码配对
type Pairer interface {
	Pair(ctx context.Context, userID, payload string) (*models.Connection, error)
	Unpair(ctx context.Context, userID, deviceID string) error
}

// UserDeviceLister 用户已配对设备
type UserDeviceLister interface {
	ListDevicesByUser(ctx context.Context, userID string) ([]models.Device, error)
}

// TokenSaver 推送令牌登记
type TokenSaver interface {
	SaveToken(ctx context.Context, userID, token, platform string) error
}

// UserHandler 配对与用户设备接口
type UserHandler struct {
	pairing Pairer
	devices UserDeviceLister
	tokens  TokenSaver
	logger  *zap.Logger
}

func NewUserHandler(p Pairer, devices UserDeviceLister, tokens TokenSaver, logger *zap.Logger) *UserHandler {
	return &UserHandler{pairing: p, devices: devices, tokens: tokens, logger: logger}
}

type pairingRequest struct {
	UserID    string `json:"user_id"`
	QRPayload string `json:"qr_payload"`
}

// POST /api/v1/pairings
// body: {"user_id": "...", "qr_payload": "babycare://pair?device=..."}
func (h *UserHandler) CreatePairing(w http.ResponseWriter, r *http.Request) {
	var req pairingRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	conn, err := h.pairing.Pair(r.Context(), req.UserID, req.QRPayload)
	if err != nil {
		switch {
		case errors.Is(err, pairing.ErrInvalidPayload):
			writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		case errors.Is(err, pairing.ErrDeviceNotFound):
			writeJSON(w, http.StatusNotFound, Fail(err.Error()))
		default:
			h.logger.Error("Failed to pair device", zap.String("user_id", req.UserID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("failed to pair device"))
		}
		return
	}
	writeJSON(w, http.StatusOK, Ok(conn))
}

// DELETE /api/v1/pairings?user_id=&device_id=
func (h *UserHandler) DeletePairing(w http.ResponseWriter, r *http.Request) {
	doc := map[string]any{
		"user_id":   r.URL.Query().Get("user_id"),
		"device_id": r.URL.Query().Get("device_id"),
	}
	// 查询参数缺省时读取 JSON body
	if doc["user_id"] == "" && doc["device_id"] == "" && r.ContentLength != 0 {
		if err := readBodyJSON(r, maxBodyBytes, &doc); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
	}
	conn, err := models.DecodeConnection(doc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("user_id and device_id are required"))
		return
	}
	userID, deviceID := conn.UserID, conn.DeviceID

	if err := h.pairing.Unpair(r.Context(), userID, deviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("pairing not found"))
			return
		}
		h.logger.Error("Failed to unpair device", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to unpair device"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"user_id": userID, "device_id": deviceID}))
}

// GET /api/v1/users/{id}/devices
func (h *UserHandler) ListDevices(w http.ResponseWriter, r *http.Request, userID string) {
	devices, err := h.devices.ListDevicesByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list user devices", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list devices"))
		return
	}
	if devices == nil {
		devices = []models.Device{}
	}
	writeJSON(w, http.StatusOK, Ok(devices))
}

type pushTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// POST /api/v1/users/{id}/push-tokens
func (h *UserHandler) SavePushToken(w http.ResponseWriter, r *http.Request, userID string) {
	var req pushTokenRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, Fail("token is required"))
		return
	}

	if err := h.tokens.SaveToken(r.Context(), userID, req.Token, req.Platform); err != nil {
		h.logger.Error("Failed to save push token", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to save push token"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(models.PushToken{UserID: userID, Token: req.Token, Platform: req.Platform, UpdatedAt: time.Now()}))
}
