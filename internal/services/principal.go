package services

import (
	"net/http"

	"github.com/aManDev200/Banking-Apis/internal/models"
)

// principalFromRequest extracts the authenticated principal placed in the
// request context by the auth middleware.
func principalFromRequest(r *http.Request) (models.Principal, bool) {
	id, ok := r.Context().Value("userID").(int)
	if !ok || id <= 0 {
		return models.Principal{}, false
	}

	accountType, ok := r.Context().Value("accountType").(string)
	if !ok || !models.ValidOwnerType(accountType) {
		return models.Principal{}, false
	}

	return models.Principal{ID: id, AccountType: accountType}, true
}
