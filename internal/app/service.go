package app

import (
	"context"
	"net/http"
	"time"

	"dailybread/api/internal/auth"
	"dailybread/api/internal/authpw"
	"dailybread/api/internal/config"
	"dailybread/api/internal/plan"
	"dailybread/api/internal/reconcile"
	"dailybread/api/internal/search"
	"dailybread/api/internal/store"
	"dailybread/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	Nickname     string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	GetProfileByID(context.Context, string) (store.Profile, error)
	ListProfilesByIDs(context.Context, []string) ([]store.Profile, error)
	ListGroupsByIDs(context.Context, []string) ([]store.Group, error)
	ListChurchesByIDs(context.Context, []string) ([]store.Church, error)
	GroupIDsForUser(context.Context, string) ([]string, error)
	FollowingIDs(context.Context, string) ([]string, error)
	FollowUser(context.Context, string, string) error
	UnfollowUser(context.Context, string, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	ListMeditations(context.Context, store.MeditationFilter) ([]store.UnifiedMeditation, error)
	GetMeditation(context.Context, string) (store.UnifiedMeditation, error)
	InsertMeditation(context.Context, store.UnifiedMeditation) error
	UpdateMeditationContent(context.Context, store.UnifiedMeditation) (bool, error)
	SetMeditationPinned(context.Context, string, bool) (bool, error)
	InsertReply(context.Context, store.MeditationReply) error
	DeleteReply(context.Context, string, string) (bool, error)
	GetReply(context.Context, string) (store.MeditationReply, error)
	ListReplies(context.Context, string) ([]store.MeditationReply, error)
	ToggleLike(context.Context, string, string) (bool, error)
	InsertReadingCheck(context.Context, store.ReadingCheck) (bool, error)
	DeleteReadingCheck(context.Context, string, string, string, int) (bool, error)
	ListReadingChecks(context.Context, string, string, string) ([]store.ReadingCheck, error)
	ListGroupReadings(context.Context, string, []string) ([]store.ReadingCheck, error)
	Ping(ctx context.Context) error
}

// refreshStore holds refresh sessions. Redis when configured, Postgres
// otherwise; both carry the same contract.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.Profile, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg        config.Config
	store      dataStore
	sessions   refreshStore
	accounts   *authpw.Service
	search     *search.Service
	plan       *plan.Plan
	reconciler *reconcile.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, accounts *authpw.Service, searchService *search.Service, reading *plan.Plan, reconciler *reconcile.Service) *Service {
	return &Service{
		cfg:        cfg,
		store:      dataStore,
		sessions:   dataStore,
		accounts:   accounts,
		search:     searchService,
		plan:       reading,
		reconciler: reconciler,
	}
}

// NewWithSessionStore swaps the refresh-session backend, keeping everything
// else on Postgres.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions refreshStore, accounts *authpw.Service, searchService *search.Service, reading *plan.Plan, reconciler *reconcile.Service) *Service {
	svc := New(cfg, dataStore, accounts, searchService, reading, reconciler)
	svc.sessions = sessions
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Plan() *plan.Plan {
	return s.plan
}

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	resp, err := s.accounts.SignUp(ctx, req)
	if err != nil {
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	profile, err := s.store.GetProfileByID(ctx, resp.UserID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, profile)
}

func (s *Service) SignIn(ctx context.Context, req authpw.SignInRequest) (Session, error) {
	profile, err := s.accounts.SignIn(ctx, req)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "invalid email or password", nil)
	}
	return s.issueSession(ctx, profile)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	profile, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The Redis backend stores only a profile snapshot; re-read the profile
	// so the new access token carries current data.
	if full, err := s.store.GetProfileByID(ctx, profile.ID); err == nil {
		profile = full
	}
	return s.issueSession(ctx, profile)
}

func (s *Service) issueSession(ctx context.Context, profile store.Profile) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  profile.ID,
		Name: profile.Nickname,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), profile.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       profile.ID,
		Nickname:     profile.Nickname,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	profile, err := s.store.GetProfileByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    profile.ID,
		Nickname:  profile.Nickname,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cannot follow yourself", nil)
	}
	if _, err := s.store.GetProfileByID(ctx, followeeID); err != nil {
		return err
	}
	return s.store.FollowUser(ctx, followerID, followeeID)
}

func (s *Service) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return s.store.UnfollowUser(ctx, followerID, followeeID)
}

func (s *Service) Following(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.store.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// viewerContext assembles the membership snapshot visibility resolution
// needs. Following ids are loaded only when the caller asks; only the
// following tab reads them.
func (s *Service) viewerContext(ctx context.Context, session Session, withFollowing bool) (ViewerContext, error) {
	viewer := ViewerContext{}
	if session.UserID == "" {
		return viewer, nil
	}
	viewer.UserID = session.UserID

	profile, err := s.store.GetProfileByID(ctx, session.UserID)
	if err != nil {
		return ViewerContext{}, err
	}
	viewer.ChurchID = profile.ChurchID

	groupIDs, err := s.store.GroupIDsForUser(ctx, session.UserID)
	if err != nil {
		return ViewerContext{}, err
	}
	viewer.GroupIDs = groupIDs

	if withFollowing {
		following, err := s.store.FollowingIDs(ctx, session.UserID)
		if err != nil {
			return ViewerContext{}, err
		}
		viewer.FollowingIDs = following
	}
	return viewer, nil
}

func (s *Service) Reconcile(ctx context.Context, dryRun bool) (reconcile.Report, error) {
	if s.reconciler == nil {
		return reconcile.Report{}, domainError(http.StatusServiceUnavailable, "UNAVAILABLE", "reconciler is not configured", nil)
	}
	return s.reconciler.Run(ctx, dryRun)
}

func (s *Service) Search(ctx context.Context, query string, limit int) (search.Results, error) {
	if s.search == nil {
		return search.Results{}, domainError(http.StatusServiceUnavailable, "UNAVAILABLE", "search is not configured", nil)
	}
	return s.search.Search(ctx, query, limit)
}
