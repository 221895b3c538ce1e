package handlers

import (
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/models"
)

type securityView struct {
	Type          models.SecurityKind `json:"type"`
	HasPassword   bool                `json:"hasPassword"`
	AllowedDomain string              `json:"allowedDomain,omitempty"`
	// Password is only filled for the admin details view.
	Password string `json:"password,omitempty"`
}

type linkView struct {
	Slug       string       `json:"slug"`
	ShortLink  string       `json:"shortLink"`
	TargetURL  string       `json:"originalUrl"`
	OwnerID    string       `json:"ownerId"`
	Tags       []string     `json:"tags"`
	Security   securityView `json:"security"`
	ExpiresAt  *time.Time   `json:"expiresAt,omitempty"`
	MaxClicks  *int         `json:"maxClicks,omitempty"`
	ClickCount int64        `json:"clickCount"`
	IsDead     bool         `json:"isDead"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

func (h *Handler) viewLink(link *models.Link, revealSecret bool) linkView {
	sec := securityView{Type: link.Security.Kind()}
	switch p := link.Security.Gate().(type) {
	case models.PasswordGate:
		sec.HasPassword = true
		if revealSecret {
			sec.Password = p.Secret
		}
	case models.DomainLock:
		sec.AllowedDomain = p.Domain
	}

	tags := link.Tags
	if tags == nil {
		tags = []string{}
	}

	return linkView{
		Slug:       link.Slug,
		ShortLink:  h.linkService.ShortLink(link.Slug),
		TargetURL:  link.TargetURL,
		OwnerID:    link.OwnerID,
		Tags:       tags,
		Security:   sec,
		ExpiresAt:  link.ExpiresAt,
		MaxClicks:  link.MaxClicks,
		ClickCount: link.ClickCount,
		IsDead:     link.IsDead(time.Now().UTC()),
		CreatedAt:  link.CreatedAt,
		UpdatedAt:  link.UpdatedAt,
	}
}

func (h *Handler) viewLinks(links []models.Link) []linkView {
	out := make([]linkView, 0, len(links))
	for i := range links {
		out = append(out, h.viewLink(&links[i], false))
	}
	return out
}
