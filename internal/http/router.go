package http

import (
	"net/http"
	"strings"

	"github.com/example/roombooking/internal/domain"
)

type RouterConfig struct {
	Collections *CollectionHandler
	Meetings    *MeetingHandler
	Sync        *SyncHandler
	Events      http.Handler
	Metrics     http.Handler
	Middleware  []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Collections != nil {
		for _, kind := range domain.Kinds() {
			registerCollection(mux, cfg, kind)
		}
	}

	if cfg.Meetings != nil {
		mux.HandleFunc("/meetings.ics", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Meetings.Calendar(w, r)
		})
	}

	if cfg.Sync != nil {
		mux.HandleFunc("/refresh/", func(w http.ResponseWriter, r *http.Request) {
			name := strings.TrimPrefix(r.URL.Path, "/refresh/")
			kind, ok := domain.ParseKind(name)
			if name == "" || !ok {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Sync.Refresh(w, r.WithContext(ContextWithKind(r.Context(), kind)))
		})
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Sync.Health(w, r)
		})
	}

	if cfg.Events != nil {
		mux.Handle("/events", cfg.Events)
	}
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

// registerCollection mounts /{plural} and /{plural}/{id} for kind. Features
// are read-only; meetings carry the validate and attendee sub-resources.
func registerCollection(mux *http.ServeMux, cfg RouterConfig, kind domain.Kind) {
	collection := "/" + kind.Plural()
	readOnly := kind == domain.KindFeature
	h := cfg.Collections

	mux.HandleFunc(collection, func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(ContextWithKind(r.Context(), kind))
		switch {
		case r.Method == http.MethodGet:
			h.List(w, r)
		case r.Method == http.MethodPost && !readOnly:
			h.Create(w, r)
		case readOnly:
			methodNotAllowed(w, http.MethodGet)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	})

	mux.HandleFunc(collection+"/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, collection+"/")
		if rest == "" {
			http.NotFound(w, r)
			return
		}
		ctx := ContextWithKind(r.Context(), kind)

		if kind == domain.KindMeeting && cfg.Meetings != nil {
			if rest == "validate" {
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Meetings.Validate(w, r.WithContext(ctx))
				return
			}
			if id, ok := strings.CutSuffix(rest, "/attendees"); ok && id != "" && !strings.Contains(id, "/") {
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Meetings.Roster(w, r.WithContext(ContextWithEntityID(ctx, domain.ID(id))))
				return
			}
		}
		if strings.Contains(rest, "/") {
			http.NotFound(w, r)
			return
		}

		r = r.WithContext(ContextWithEntityID(ctx, domain.ID(rest)))
		switch {
		case r.Method == http.MethodGet:
			h.Get(w, r)
		case r.Method == http.MethodPut && !readOnly:
			h.Update(w, r)
		case r.Method == http.MethodDelete && !readOnly:
			h.Delete(w, r)
		case readOnly:
			methodNotAllowed(w, http.MethodGet)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
