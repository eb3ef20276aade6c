package publication

import (
	"context"
	"errors"
	"strings"

	"github.com/okian/postflow/internal/adapters/repository"
	"github.com/okian/postflow/internal/domain/model"
)

// UnknownAuthor is shown when no display name can be found anywhere.
const UnknownAuthor = "Unknown Author"

// Author holds the display fields copied onto a post.
type Author struct {
	Name     string
	PhotoURL string
}

// ResolveAuthor picks the display name from the stored profile, then the
// session display name, then the email local part, then UnknownAuthor. A
// failed profile lookup is returned alongside the fallback, never instead of it.
func ResolveAuthor(ctx context.Context, profiles ProfileReader, id *model.Identity) (Author, error) {
	var a Author
	var lookupErr error

	if profiles != nil && id.UserID != "" {
		p, err := profiles.GetProfile(ctx, id.UserID)
		switch {
		case err == nil:
			a.Name = strings.TrimSpace(p.DisplayName)
			a.PhotoURL = p.PhotoURL
		case !errors.Is(err, repository.ErrNotFound):
			lookupErr = err
		}
	}
	if a.Name == "" {
		a.Name = strings.TrimSpace(id.DisplayName)
	}
	if a.Name == "" {
		if local, _, ok := strings.Cut(id.Email, "@"); ok && local != "" {
			a.Name = local
		}
	}
	if a.Name == "" {
		a.Name = UnknownAuthor
	}
	if a.PhotoURL == "" {
		a.PhotoURL = id.PhotoURL
	}
	return a, lookupErr
}
