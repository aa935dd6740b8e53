package handlers

import (
	"errors"
	"net/http"

	"garden_irrigation/internal/service"

	"github.com/gin-gonic/gin"
)

// operatorCredentials is the body of both /auth endpoints.
type operatorCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// bindCredentials writes a 400 and returns false when the body is not valid.
func (h *Handler) bindCredentials(c *gin.Context, dst *operatorCredentials) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if h.log != nil {
			h.log.Infow("auth_bad_request_body", "path", c.FullPath(), "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// @Summary      Register an operator
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      operatorCredentials  true  "Operator credentials"
// @Success      200   {object}  map[string]int
// @Failure      400   {object}  map[string]string
// @Router       /auth/sign-up [post]
func (h *Handler) signUp(c *gin.Context) {
	var in operatorCredentials
	if !h.bindCredentials(c, &in) {
		return
	}

	id, err := h.services.SignUp(in.Username, in.Password)
	if err != nil {
		if h.log != nil {
			h.log.Infow("auth_sign_up_failed", "username", in.Username, "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// @Summary      Sign in an operator
// @Description  Returns a bearer token for the /api/v1 routes
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      operatorCredentials  true  "Operator credentials"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /auth/sign-in [post]
func (h *Handler) signIn(c *gin.Context) {
	var in operatorCredentials
	if !h.bindCredentials(c, &in) {
		return
	}

	token, err := h.services.GenerateToken(in.Username, in.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"token": token})
	case errors.Is(err, service.ErrNoSigningKey):
		h.logAndJSONError(c, http.StatusServiceUnavailable, "sign-in is not configured", "auth_sign_in_failed", err)
	default:
		if h.log != nil {
			h.log.Infow("auth_sign_in_failed", "username", in.Username, "err", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	}
}
