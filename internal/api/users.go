package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fetcharr/fetcharr/internal/crypto"
	"github.com/fetcharr/fetcharr/internal/store"
)

// userResponse is the outbound shape for a watch user. The access token is
// never echoed back; only its mask is.
type userResponse struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"displayName"`
	AccessToken string    `json:"accessToken"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toUserResponse(u store.WatchUser) userResponse {
	return userResponse{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AccessToken: crypto.Mask(u.AccessToken),
		Active:      u.Active,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type userRequest struct {
	DisplayName string `json:"displayName"`
	AccessToken string `json:"accessToken"`
	Active      *bool  `json:"active"`
}

func (s *Server) listUsers(c echo.Context) error {
	users, err := s.users.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getUser(c echo.Context) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}

	user, err := s.users.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toUserResponse(*user))
}

func (s *Server) createUser(c echo.Context) error {
	var req userRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.DisplayName == "" || req.AccessToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "displayName and accessToken are required")
	}

	user := &store.WatchUser{
		DisplayName: req.DisplayName,
		AccessToken: req.AccessToken,
		Active:      true,
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.users.Create(c.Request().Context(), user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, toUserResponse(*user))
}

func (s *Server) updateUser(c echo.Context) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}

	user, err := s.users.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var req userRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.DisplayName != "" {
		user.DisplayName = req.DisplayName
	}
	if req.AccessToken != "" {
		user.AccessToken = req.AccessToken
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.users.Update(c.Request().Context(), user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toUserResponse(*user))
}

func (s *Server) deleteUser(c echo.Context) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}

	if err := s.users.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func parseUserID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return id, nil
}
