package getter

import (
	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/rules"
	"github.com/curatarr/curatarr/internal/services/overseerr"
	"github.com/curatarr/curatarr/internal/services/plex"
	"github.com/curatarr/curatarr/internal/services/servarr"
	"github.com/curatarr/curatarr/internal/services/tautulli"
	"github.com/curatarr/curatarr/internal/services/tmdb"
	"github.com/curatarr/curatarr/internal/utils"
)

// Clients bundles the external service clients the resolvers draw from.
// Optional services may be nil; their resolver is then not registered and
// rules referencing them resolve to unknown.
type Clients struct {
	Plex      *plex.Client
	Arrs      *servarr.Manager
	Overseerr *overseerr.Client
	Tautulli  *tautulli.Client
	Tmdb      *tmdb.Client
}

// Build wires one resolver per configured application
func Build(cfg *config.Config, db *models.Database, clients Clients, caches *utils.CacheManager, logger *logrus.Logger) map[rules.AppID]rules.PropertyGetter {
	ids := NewIDResolver(clients.Plex, clients.Tmdb, caches, logger)

	getters := map[rules.AppID]rules.PropertyGetter{
		rules.AppPlex: NewPlexGetter(clients.Plex, logger),
	}
	if cfg.HasRadarr() {
		getters[rules.AppRadarr] = NewRadarrGetter(clients.Arrs, db, ids, logger)
	}
	if cfg.HasSonarr() {
		getters[rules.AppSonarr] = NewSonarrGetter(clients.Arrs, db, ids, logger)
	}
	if cfg.HasOverseerr() && clients.Overseerr != nil {
		getters[rules.AppOverseerr] = NewOverseerrGetter(clients.Overseerr, ids, logger)
	}
	if cfg.HasTautulli() && clients.Tautulli != nil {
		getters[rules.AppTautulli] = NewTautulliGetter(clients.Tautulli, logger)
	}
	return getters
}
