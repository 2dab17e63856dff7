package usecases

import (
	"context"
	"errors"
	"time"

	"kasbot/internal/entities"
	"kasbot/internal/interfaces"
)

var ErrWhatsAppDisabled = errors.New("whatsapp channel is not enabled")

// RefreshResult is what POST /refresh reports back.
type RefreshResult struct {
	OK          bool      `json:"ok"`
	RefreshedAt time.Time `json:"refreshedAt"`
	Version     uint64    `json:"version"`
}

type WhatsAppStatus struct {
	Enabled   bool   `json:"enabled"`
	LoggedIn  bool   `json:"loggedIn"`
	Connected bool   `json:"connected"`
	Phone     string `json:"phone,omitempty"`
	Name      string `json:"name,omitempty"`
	QRPending bool   `json:"qrPending"`
}

// AdminUsecase backs the operator endpoints.
type AdminUsecase struct {
	knowledge interfaces.KnowledgeMonitor
	whatsapp  interfaces.WhatsAppLink // nil when the channel is off
}

func NewAdminUsecase(knowledge interfaces.KnowledgeMonitor, whatsapp interfaces.WhatsAppLink) *AdminUsecase {
	return &AdminUsecase{knowledge: knowledge, whatsapp: whatsapp}
}

func (u *AdminUsecase) Health() entities.Health {
	return u.knowledge.Health()
}

// Refresh runs one refresh pass. On failure the previous snapshot keeps serving.
func (u *AdminUsecase) Refresh(ctx context.Context) (RefreshResult, error) {
	snap, err := u.knowledge.Refresh(ctx)
	if err != nil {
		return RefreshResult{}, err
	}
	return RefreshResult{OK: true, RefreshedAt: snap.LoadedAt, Version: snap.Version}, nil
}

func (u *AdminUsecase) WhatsAppStatus() WhatsAppStatus {
	if u.whatsapp == nil {
		return WhatsAppStatus{}
	}
	return WhatsAppStatus{
		Enabled:   true,
		LoggedIn:  u.whatsapp.IsLoggedIn(),
		Connected: u.whatsapp.IsConnected(),
		Phone:     u.whatsapp.GetPhoneNumber(),
		Name:      u.whatsapp.GetName(),
		QRPending: u.whatsapp.GetQR() != "",
	}
}

// WhatsAppQR returns the pending link code, "" when the device is already
// linked or no code has been issued yet.
func (u *AdminUsecase) WhatsAppQR() (string, error) {
	if u.whatsapp == nil {
		return "", ErrWhatsAppDisabled
	}
	return u.whatsapp.GetQR(), nil
}
