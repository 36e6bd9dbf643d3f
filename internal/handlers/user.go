package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sjnosa/connect/internal/identity"
	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/repositories"
	"github.com/sjnosa/connect/internal/session"
)

// ProfileHandler serves profiles decorated with their cohort identity
type ProfileHandler struct {
	manager  *session.Manager
	profiles repositories.ProfileRepository
	resolver *identity.Resolver
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(manager *session.Manager, profiles repositories.ProfileRepository, resolver *identity.Resolver) *ProfileHandler {
	return &ProfileHandler{manager: manager, profiles: profiles, resolver: resolver}
}

// RegisterProfileRoutes registers identity and profile routes
func (h *ProfileHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/identity", h.GetIdentity)
	g.GET("/profiles/me", h.GetProfile)
	g.PUT("/profiles/me", h.UpdateProfile)
	g.GET("/profiles", h.ListProfiles)
}

// ProfileView is a profile with its cohort identity
type ProfileView struct {
	models.Profile
	Identity identity.Identity `json:"identity"`
	Label    string            `json:"label,omitempty"`
}

func (h *ProfileHandler) view(p *models.Profile) ProfileView {
	v := ProfileView{Profile: *p, Identity: h.resolver.Resolve(p.YearOfCompletion)}
	if p.YearOfCompletion != nil {
		v.Label = v.Identity.Label(*p.YearOfCompletion)
	}
	return v
}

// GetIdentity resolves ?year= to a cohort identity. Without a year the generic identity is returned.
func (h *ProfileHandler) GetIdentity(c echo.Context) error {
	raw := c.QueryParam("year")
	if raw == "" {
		return c.JSON(http.StatusOK, echo.Map{"identity": h.resolver.Resolve(nil)})
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid year")
	}
	id := h.resolver.ResolveYear(year)
	return c.JSON(http.StatusOK, echo.Map{"identity": id, "label": id.Label(year)})
}

// GetProfile returns the signed-in user's profile
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}
	profile, err := s.Profile(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, h.view(profile))
}

// UpdateProfile edits the signed-in user's profile, creating it from the fallback when missing
func (h *ProfileHandler) UpdateProfile(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}

	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	profile, err := s.Profile(ctx)
	if err != nil {
		return httpError(err)
	}
	req.Apply(profile)
	if err := h.profiles.UpsertProfile(ctx, profile); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, h.view(profile))
}

// ListProfiles lists the people the user can message. ?q= searches by name or email.
func (h *ProfileHandler) ListProfiles(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var profiles []models.Profile
	if q := c.QueryParam("q"); q != "" {
		profiles, err = h.profiles.SearchProfiles(ctx, q)
	} else {
		profiles, err = s.Peers(ctx)
	}
	if err != nil {
		return httpError(err)
	}

	out := make([]ProfileView, 0, len(profiles))
	for i := range profiles {
		if profiles[i].ID == s.UserID() {
			continue
		}
		out = append(out, h.view(&profiles[i]))
	}
	return c.JSON(http.StatusOK, out)
}
