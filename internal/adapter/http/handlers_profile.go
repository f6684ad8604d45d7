package adapthttp

import (
	"net/http"

	"matcha/internal/domain"
)

type profileBody struct {
	UserID      int64   `json:"userId"`
	DisplayName string  `json:"displayName"`
	Gender      *string `json:"gender"`
	SexualPref  *string `json:"sexualPref"`
	Bio         string  `json:"bio"`
	Birthdate   *string `json:"birthdate"`
	FameRating  int     `json:"fameRating"`
}

func toProfileBody(p *domain.Profile) profileBody {
	return profileBody{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Gender:      p.Gender,
		SexualPref:  p.SexualPref,
		Bio:         p.Bio,
		Birthdate:   p.Birthdate,
		FameRating:  p.FameRating,
	}
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	profile, err := s.profiles.Get(r.Context(), identity.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": toProfileBody(profile)})
}

func (s *Server) handlePatchProfile(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req struct {
		DisplayName *string `json:"displayName"`
		Gender      *string `json:"gender"`
		SexualPref  *string `json:"sexualPref"`
		Bio         *string `json:"bio"`
		Birthdate   *string `json:"birthdate"`
		FameRating  *int    `json:"fameRating"`
	}
	if !s.parseJSON(w, r, &req) {
		return
	}

	profile, err := s.profiles.Patch(r.Context(), identity.UserID, domain.ProfilePatch{
		DisplayName: req.DisplayName,
		Gender:      req.Gender,
		SexualPref:  req.SexualPref,
		Bio:         req.Bio,
		Birthdate:   req.Birthdate,
		FameRating:  req.FameRating,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": toProfileBody(profile)})
}

func (s *Server) handlePublicProfile(w http.ResponseWriter, r *http.Request) {
	user, profile, err := s.profiles.PublicProfile(r.Context(), r.PathValue("username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// No email in the public view.
	body := map[string]any{
		"user": map[string]any{
			"id":       user.ID,
			"username": user.Username,
		},
		"profile": toProfileBody(profile),
	}
	if avatar, err := s.photos.Avatar(r.Context(), user.ID); err == nil && avatar != nil {
		body["avatarUrl"] = "/uploads/" + avatar.StorageKey
	}
	writeJSON(w, http.StatusOK, body)
}
