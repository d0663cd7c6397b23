package auth

import "github.com/gin-gonic/gin"

// Identity is the authenticated caller for one request. It never carries
// permissions; those are resolved per check.
type Identity struct {
	UserID   string
	IsActive bool
	// IsAdmin backs the coarse admin gate only.
	IsAdmin bool
}

const identityKey = "auth.identity"

func SetIdentity(c *gin.Context, id *Identity) {
	c.Set(identityKey, id)
}

func IdentityFrom(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*Identity)
	return id, ok && id != nil
}
