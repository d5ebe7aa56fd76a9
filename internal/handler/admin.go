package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/arepabuelas/arepabuelas-api/internal/repository"
)

// AdminHandler exposes the admin approval action.  Approval is the only
// way an account leaves the pending role.
type AdminHandler struct {
	Users *repository.UserRepo
}

func NewAdminHandler(u *repository.UserRepo) *AdminHandler {
	return &AdminHandler{Users: u}
}

// ApproveUser promotes a pending account to the user role.  Approving an
// account that is not pending (already approved, admin, or nonexistent)
// returns 404 so the endpoint cannot be probed for role information.
func (h *AdminHandler) ApproveUser(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	promoted, err := h.Users.Approve(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "approval failed"})
	}
	if !promoted {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no pending user with that id"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user approved"})
}
