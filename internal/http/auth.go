package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"agenda-api/internal/session"
)

// registerRequest accepts the Portuguese field names and their English aliases.
type registerRequest struct {
	Nome     string `json:"nome"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Senha    string `json:"senha"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Senha    string `json:"senha"`
	Password string `json:"password"`
}

type userSummary struct {
	Nome  string `json:"nome"`
	Email string `json:"email"`
}

var (
	registerFailure = failure{
		op:       "register user",
		internal: "Erro ao registrar usuário.",
		messages: map[int]string{
			http.StatusBadRequest: "Nome, e-mail e senha são obrigatórios.",
			http.StatusConflict:   "Este e-mail já está em uso.",
		},
	}
	loginFailure = failure{
		op:       "login",
		internal: "Erro ao fazer login.",
		messages: map[int]string{
			http.StatusUnauthorized: "E-mail ou senha inválidos.",
		},
	}
	deleteAccountFailure = failure{
		op:       "delete account",
		internal: "Erro ao remover usuário.",
		messages: map[int]string{
			http.StatusNotFound: "Usuário não encontrado.",
		},
	}
)

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	_ = c.ShouldBindJSON(&req)

	name := firstNonEmpty(req.Nome, req.Name)
	password := firstNonEmpty(req.Senha, req.Password)
	if strings.TrimSpace(name) == "" || strings.TrimSpace(req.Email) == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": registerFailure.messages[http.StatusBadRequest]})
		return
	}

	user, err := h.identity.Register(c.Request.Context(), name, req.Email, password)
	if err != nil {
		h.fail(c, registerFailure, err, logrus.Fields{"email": req.Email})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Usuário registrado com sucesso!", "id": user.ID})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	_ = c.ShouldBindJSON(&req)

	password := firstNonEmpty(req.Senha, req.Password)
	if strings.TrimSpace(req.Email) == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "E-mail e senha são obrigatórios."})
		return
	}

	token, user, err := h.sessions.Login(c.Request.Context(), req.Email, password)
	if err != nil {
		if errors.Is(err, session.ErrDenied) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": loginFailure.messages[http.StatusUnauthorized]})
			return
		}
		h.fail(c, loginFailure, err, nil)
		return
	}

	// a fresh login replaces whatever session the client was holding
	if prev, ok := identity(c); ok {
		if err := h.sessions.Logout(c.Request.Context(), prev.SessionID); err != nil {
			h.logger.WithError(err).WithField("session_id", prev.SessionID).Warn("revoke previous session")
		}
	}

	h.setSessionCookie(c, token)
	c.JSON(http.StatusOK, gin.H{
		"message": "Login bem-sucedido!",
		"usuario": userSummary{Nome: user.Name, Email: user.Email},
	})
}

func (h *Handler) logout(c *gin.Context) {
	ident, _ := identity(c)
	if err := h.sessions.Logout(c.Request.Context(), ident.SessionID); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"op":         "logout",
			"user_id":    ident.UserID,
			"session_id": ident.SessionID,
		}).Error("logout failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Falha ao fazer logout."})
		return
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logout bem-sucedido."})
}

// deleteAccount removes the session user and every session they hold.
// Agendas and events they own are left in place.
func (h *Handler) deleteAccount(c *gin.Context) {
	uid := userID(c)
	ctx := c.Request.Context()

	if err := h.identity.Delete(ctx, uid); err != nil {
		h.fail(c, deleteAccountFailure, err, nil)
		return
	}
	if err := h.sessions.RevokeUser(ctx, uid); err != nil {
		h.fail(c, deleteAccountFailure, err, logrus.Fields{"stage": "revoke sessions"})
		return
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Usuário removido com sucesso."})
}
