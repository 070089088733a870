// Package grpcserver exposes the EcoQuest gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/and161185/ecoquest/internal/convert"
	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/model"
	"github.com/and161185/ecoquest/internal/rpc"
	"github.com/and161185/ecoquest/internal/service"
	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server wires services into gRPC handlers.
type Server struct {
	auth        service.AuthService
	pipeline    *service.Pipeline
	activities  *service.ActivityService
	leaderboard *service.LeaderboardService
	now         func() time.Time
}

var _ rpc.EcoQuestServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(auth service.AuthService, pipeline *service.Pipeline, activities *service.ActivityService, leaderboard *service.LeaderboardService) *Server {
	return &Server{auth: auth, pipeline: pipeline, activities: activities, leaderboard: leaderboard, now: time.Now}
}

// --- Auth ---

// Register creates a new user account.
func (s *Server) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req convert.RegisterRequest
	if err := convert.FromStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}
	u, err := s.auth.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(model.ViewUser(*u))
}

func remoteIP(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr := p.Addr.String()
		if i := strings.LastIndexByte(addr, ':'); i > 0 {
			return addr[:i]
		}
		return addr
	}
	return ""
}

// Login authenticates a user and returns an access token and the profile.
func (s *Server) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req convert.LoginRequest
	if err := convert.FromStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}
	tok, u, err := s.auth.LoginWithIP(ctx, req.Email, req.Password, remoteIP(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(convert.LoginView{Token: tok.AccessToken, ExpiresAt: tok.ExpiresAt, User: model.ViewUser(u)})
}

// Profile returns the caller's profile.
func (s *Server) Profile(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.userIDFromCtx(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	u, err := s.auth.Profile(ctx, userID.String())
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(model.ViewUser(*u))
}

// --- Activities ---

// SubmitActivity runs the submission pipeline for the caller.
// Identifiers in the message are ignored; the token subject is the user.
func (s *Server) SubmitActivity(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.userIDFromCtx(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	var body convert.ActivityRequest
	if err := convert.FromStruct(in, &body); err != nil {
		return nil, toStatus(err)
	}
	body.UserID, body.Name = userID.String(), ""
	req, err := body.ToSubmit()
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.pipeline.Submit(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(convert.ViewSubmission(res))
}

// ListActivities returns the caller's activities, newest first.
func (s *Server) ListActivities(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.userIDFromCtx(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	list, err := s.activities.FindByUser(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.activitiesReply(ctx, userID, list)
}

type todayRequest struct {
	At *time.Time `json:"at,omitempty"`
}

// TodayActivities returns the caller's activities dated on the UTC day of "at" (default now).
func (s *Server) TodayActivities(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.userIDFromCtx(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	var req todayRequest
	if err := convert.FromStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}
	at := s.now()
	if req.At != nil {
		at = *req.At
	}
	list, err := s.activities.FindToday(ctx, userID, at)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.activitiesReply(ctx, userID, list)
}

func (s *Server) activitiesReply(ctx context.Context, userID uuid.UUID, list []model.Activity) (*structpb.Struct, error) {
	u, err := s.auth.Profile(ctx, userID.String())
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(convert.ActivitiesView{Activities: model.ViewActivities(list), Badges: model.ViewBadges(u.Badges)})
}

type leaderboardRequest struct {
	Limit int `json:"limit"`
}

// Leaderboard returns the top users by points. No authentication required.
func (s *Server) Leaderboard(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req leaderboardRequest
	if err := convert.FromStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}
	entries, err := s.leaderboard.Top(ctx, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(convert.ViewLeaderboard(entries))
}

// --- helpers ---

func reply(v any) (*structpb.Struct, error) {
	st, err := convert.ToStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return st, nil
}

// userIDFromCtx returns the id set by AuthUnary or, without it, verifies
// "authorization: Bearer <JWT>" itself.
func (s *Server) userIDFromCtx(ctx context.Context) (uuid.UUID, error) {
	if id, ok := UserIDFromCtx(ctx); ok {
		return id, nil
	}
	tok, err := bearerTokenFromMD(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return s.auth.VerifyToken(tok)
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}

var kindCodes = map[errs.Kind]codes.Code{
	errs.KindInvalidInput:       codes.InvalidArgument,
	errs.KindNotFound:           codes.NotFound,
	errs.KindDuplicateImage:     codes.AlreadyExists,
	errs.KindAlreadyExists:      codes.AlreadyExists,
	errs.KindPartialFailure:     codes.Aborted,
	errs.KindStorageUnavailable: codes.Unavailable,
	errs.KindUnauthorized:       codes.Unauthenticated,
	errs.KindRateLimited:        codes.ResourceExhausted,
}

// toStatus maps a domain error to a gRPC status carrying the error view as a detail.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code, ok := kindCodes[errs.KindOf(err)]
	if !ok {
		code = codes.Internal
	}
	view := convert.ViewError(err)
	st := status.New(code, view.Message)
	if detail, derr := convert.ToStruct(view); derr == nil {
		if withDetail, werr := st.WithDetails(detail); werr == nil {
			st = withDetail
		}
	}
	return st.Err()
}
