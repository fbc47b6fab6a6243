package rehome

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/lodthe/container-from-sqldump/internal/sitedb"
	"github.com/lodthe/container-from-sqldump/pkg/phpserialize"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	optionHome          = "home"
	optionSiteURL       = "siteurl"
	optionActivePlugins = "active_plugins"
	optionTemplate      = "template"
	optionStylesheet    = "stylesheet"
)

// Target describes the environment the site is moved to.
type Target struct {
	Host string
	Port int

	// Plugins are stored in active_plugins in the given order.
	Plugins []string

	// Theme is forced as both template and stylesheet.
	Theme string
}

// URL returns the new site URL.
func (t Target) URL() string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(t.Host, strconv.Itoa(t.Port)))
}

// Result describes what has been rewritten.
type Result struct {
	OriginURL string
	SiteURL   string

	GUIDsRewritten    int64
	ContentsRewritten int64
}

// Engine rewrites the site configuration and content of a restored database.
type Engine struct {
	logger zerolog.Logger
	store  Store
	prefix string
}

func NewEngine(logger zerolog.Logger, store Store, prefix string) *Engine {
	return &Engine{
		logger: logger.With().Str("prefix", prefix).Logger(),
		store:  store,
		prefix: prefix,
	}
}

// Rehome runs the following steps strictly in order:
// 1) active_plugins is reset to an empty value;
// 2) the origin URL is read from home/siteurl;
// 3) home and siteurl are set to the target URL;
// 4) active_plugins is set to the serialized target plugin list;
// 5) the origin URL is replaced with the target URL in posts.guid and posts.post_content;
// 6) template and stylesheet are set to the target theme.
//
// The first failure stops the process, nothing is rolled back.
func (e *Engine) Rehome(ctx context.Context, target Target) (*Result, error) {
	_, err := e.store.SetOptions(ctx, e.prefix, "", optionActivePlugins)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reset active plugins")
	}

	origin, err := e.ReadOrigin(ctx)
	if err != nil {
		return nil, err
	}

	siteURL := target.URL()
	e.logger.Info().Str("origin_url", origin).Str("site_url", siteURL).Msg("rehoming the site")

	_, err = e.store.SetOptions(ctx, e.prefix, siteURL, optionHome, optionSiteURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update site url")
	}

	_, err = e.store.SetOptions(ctx, e.prefix, phpserialize.EncodeList(target.Plugins), optionActivePlugins)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update active plugins")
	}

	result := &Result{
		OriginURL: origin,
		SiteURL:   siteURL,
	}

	result.GUIDsRewritten, result.ContentsRewritten, err = e.ReplaceOrigin(ctx, origin, siteURL)
	if err != nil {
		return nil, err
	}

	_, err = e.store.SetOptions(ctx, e.prefix, target.Theme, optionTemplate, optionStylesheet)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update theme")
	}

	return result, nil
}

// ReadOrigin returns the current site URL: the value of home, or siteurl if home is absent.
// ErrOriginNotFound is returned when both are absent, NULL or empty.
func (e *Engine) ReadOrigin(ctx context.Context) (string, error) {
	options, err := e.store.GetOptions(ctx, e.prefix, optionHome, optionSiteURL)
	if err != nil {
		return "", errors.Wrap(err, "failed to read site url")
	}

	values := make(map[string]string, len(options))
	for _, opt := range options {
		if opt.Value.Valid && opt.Value.String != "" {
			values[opt.Name] = opt.Value.String
		}
	}

	for _, name := range []string{optionHome, optionSiteURL} {
		if v, ok := values[name]; ok {
			return v, nil
		}
	}

	return "", ErrOriginNotFound
}

// ReplaceOrigin replaces every occurrence of origin with siteURL in the guid and post_content
// columns of posts. It is a literal substring replacement.
//
// origin must be the value read from the database before home/siteurl were overwritten.
func (e *Engine) ReplaceOrigin(ctx context.Context, origin, siteURL string) (guids int64, contents int64, err error) {
	if origin == "" {
		return 0, 0, ErrOriginNotFound
	}

	guids, err = e.store.ReplaceInPosts(ctx, e.prefix, sitedb.PostGUID, origin, siteURL)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to rewrite guids")
	}

	contents, err = e.store.ReplaceInPosts(ctx, e.prefix, sitedb.PostContent, origin, siteURL)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to rewrite post content")
	}

	e.logger.Debug().Int64("guids", guids).Int64("contents", contents).Msg("origin url has been replaced")

	return guids, contents, nil
}
