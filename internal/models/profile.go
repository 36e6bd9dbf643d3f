package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// Profile represents an alumni-network member (PostgreSQL, table "profiles")
type Profile struct {
	ID                string  `json:"id" gorm:"primaryKey;type:uuid"`
	Email             string  `json:"email" gorm:"uniqueIndex"`
	FullName          *string `json:"full_name"`
	Role              string  `json:"role" gorm:"size:20;default:'alumni'"` // admin, teacher, student, parent, alumni
	AvatarURL         *string `json:"avatar_url"`
	YearOfCompletion  *int    `json:"year_of_completion"`
	CurrentProfession *string `json:"current_profession"`
	JobTitle          *string `json:"job_title"`
	Bio               *string `json:"bio"`
	Location          *string `json:"location"`
	LinkedInURL       *string `json:"linked_in_url"`
	IsPublicProfile   bool    `json:"is_public_profile" gorm:"default:true"`
}

func (Profile) TableName() string { return "profiles" }

// FallbackProfile builds the profile shown when the profiles row is missing for a signed-in user.
func FallbackProfile(userID, email string) *Profile {
	name := "User"
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		name = local
	}
	year := 2018
	return &Profile{
		ID:               userID,
		Email:            email,
		FullName:         &name,
		Role:             "alumni",
		YearOfCompletion: &year,
		IsPublicProfile:  true,
	}
}

// DisplayName returns the full name or the email when no name is set.
func (p *Profile) DisplayName() string {
	if p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	return p.Email
}

// ProfileCompact is the author summary joined onto feed posts and comments
type ProfileCompact struct {
	ID               string  `json:"id"`
	FullName         *string `json:"full_name"`
	AvatarURL        *string `json:"avatar_url"`
	YearOfCompletion *int    `json:"year_of_completion"`
}

func (p *Profile) ToCompact() ProfileCompact {
	return ProfileCompact{
		ID:               p.ID,
		FullName:         p.FullName,
		AvatarURL:        p.AvatarURL,
		YearOfCompletion: p.YearOfCompletion,
	}
}

// StartSessionRequest defines the request body for starting a sync session
type StartSessionRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// JwtCustomClaims are the access token claims accepted by the local API.
// Sub carries the user id, matching the Supabase access token layout.
type JwtCustomClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// UpdateProfileRequest defines the request body for editing the caller's profile
type UpdateProfileRequest struct {
	FullName          *string `json:"full_name" validate:"omitempty,min=1,max=100"`
	AvatarURL         *string `json:"avatar_url" validate:"omitempty,url"`
	YearOfCompletion  *int    `json:"year_of_completion" validate:"omitempty,min=1900,max=2100"`
	CurrentProfession *string `json:"current_profession" validate:"omitempty,max=100"`
	JobTitle          *string `json:"job_title" validate:"omitempty,max=100"`
	Bio               *string `json:"bio" validate:"omitempty,max=500"`
	Location          *string `json:"location" validate:"omitempty,max=100"`
	LinkedInURL       *string `json:"linked_in_url" validate:"omitempty,url"`
	IsPublicProfile   *bool   `json:"is_public_profile"`
}

// Apply copies the fields set in req onto p.
func (req *UpdateProfileRequest) Apply(p *Profile) {
	if req.FullName != nil {
		p.FullName = req.FullName
	}
	if req.AvatarURL != nil {
		p.AvatarURL = req.AvatarURL
	}
	if req.YearOfCompletion != nil {
		p.YearOfCompletion = req.YearOfCompletion
	}
	if req.CurrentProfession != nil {
		p.CurrentProfession = req.CurrentProfession
	}
	if req.JobTitle != nil {
		p.JobTitle = req.JobTitle
	}
	if req.Bio != nil {
		p.Bio = req.Bio
	}
	if req.Location != nil {
		p.Location = req.Location
	}
	if req.LinkedInURL != nil {
		p.LinkedInURL = req.LinkedInURL
	}
	if req.IsPublicProfile != nil {
		p.IsPublicProfile = *req.IsPublicProfile
	}
}
