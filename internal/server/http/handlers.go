package httpserver

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/ecoquest/internal/convert"
	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/model"
	"github.com/and161185/ecoquest/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
)

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- users ---

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req convert.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.svc.Auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.ViewUser(*u))
}

type loginReply struct {
	Message string `json:"message"`
	convert.LoginView
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req convert.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	tok, u, err := h.svc.Auth.LoginWithIP(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginReply{
		Message:   "Login successful",
		LoginView: convert.LoginView{Token: tok.AccessToken, ExpiresAt: tok.ExpiresAt, User: model.ViewUser(u)},
	})
}

func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Auth.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ViewUser(*u))
}

// --- activities ---

// submitActivity credits the token subject; user identifiers in the body are ignored.
func (h *handler) submitActivity(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFrom(r.Context())
	var (
		req service.SubmitRequest
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		req, err = h.multipartSubmit(w, r)
		req.UserIdentifier = uid.String()
	} else {
		var body convert.ActivityRequest
		if err = decodeJSON(w, r, &body); err == nil {
			body.UserID, body.Name = uid.String(), ""
			req, err = body.ToSubmit()
		}
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Pipeline.Submit(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.ViewSubmission(res))
}

func (h *handler) multipartSubmit(w http.ResponseWriter, r *http.Request) (service.SubmitRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		return service.SubmitRequest{}, errs.Invalid("malformed multipart body: %v", err)
	}
	form := r.MultipartForm
	defer func() { _ = form.RemoveAll() }()

	field := func(k string) string { return strings.TrimSpace(r.FormValue(k)) }
	req := service.SubmitRequest{ActivityType: field("type")}
	var err error
	if req.Points, err = requiredFloat("points", field("points")); err != nil {
		return req, err
	}
	if req.CO2Saved, err = requiredFloat("co2Saved", field("co2Saved")); err != nil {
		return req, err
	}
	if req.Latitude, err = optionalFloat("latitude", field("latitude")); err != nil {
		return req, err
	}
	if req.Longitude, err = optionalFloat("longitude", field("longitude")); err != nil {
		return req, err
	}
	if d := field("date"); d != "" {
		if req.Date, err = time.Parse(time.RFC3339, d); err != nil {
			return req, errs.Invalid("date must be RFC3339")
		}
	}

	file, hdr, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return req, nil
	case err != nil:
		return req, errs.Invalid("image: %v", err)
	}
	defer file.Close()
	if req.Image, err = readUpload(file); err != nil {
		return req, err
	}
	if req.ImageType = hdr.Header.Get("Content-Type"); req.ImageType == "" {
		req.ImageType = http.DetectContentType(req.Image)
	}
	return req, nil
}

func readUpload(f multipart.File) ([]byte, error) {
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, errs.Invalid("image: %v", err)
	}
	return b, nil
}

func requiredFloat(name, v string) (float64, error) {
	if v == "" {
		return 0, errs.Invalid("%s is required", name)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errs.Invalid("%s must be a number", name)
	}
	return f, nil
}

func optionalFloat(name, v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, errs.Invalid("%s must be a number", name)
	}
	return &f, nil
}

func (h *handler) activitiesByBody(w http.ResponseWriter, r *http.Request) {
	var req convert.UserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.listActivities(w, r, req.Identifier(), nil)
}

func (h *handler) userActivities(w http.ResponseWriter, r *http.Request) {
	h.listActivities(w, r, chi.URLParam(r, "id"), nil)
}

func (h *handler) todayActivities(w http.ResponseWriter, r *http.Request) {
	at := h.now()
	if v := r.URL.Query().Get("at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.fail(w, r, errs.Invalid("at must be RFC3339"))
			return
		}
		at = t
	}
	h.listActivities(w, r, chi.URLParam(r, "id"), &at)
}

// listActivities answers with all activities, or with the UTC day of *day when set.
func (h *handler) listActivities(w http.ResponseWriter, r *http.Request, identifier string, day *time.Time) {
	u, err := h.svc.Auth.Profile(r.Context(), identifier)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var list []model.Activity
	if day != nil {
		list, err = h.svc.Activities.FindToday(r.Context(), u.ID, *day)
	} else {
		list, err = h.svc.Activities.FindByUser(r.Context(), u.ID)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ActivitiesView{
		Activities: model.ViewActivities(list),
		Badges:     model.ViewBadges(u.Badges),
	})
}

func (h *handler) reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, errs.Invalid("activity id must be a uuid"))
		return
	}
	a, err := h.svc.Activities.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// someone else's activity is reported as missing
	if caller, _ := userIDFrom(r.Context()); a.UserID != caller {
		h.fail(w, r, errs.ErrNotFound)
		return
	}
	res, err := h.svc.Pipeline.Reconcile(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view := convert.ViewSubmission(res)
	view.Message = "Activity reconciled"
	writeJSON(w, http.StatusOK, view)
}

// --- leaderboard ---

func (h *handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.fail(w, r, errs.Invalid("limit must be an integer"))
			return
		}
		limit = n
	}
	entries, err := h.svc.Leaderboard.Top(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ViewLeaderboard(entries))
}

// --- quests ---

type completeLevelRequest struct {
	LevelCompleted int   `json:"levelCompleted"`
	PointsToAdd    int64 `json:"pointsToAdd"`
}

type userReply struct {
	User model.UserView `json:"user"`
}

func (h *handler) completeLevel(w http.ResponseWriter, r *http.Request) {
	if h.svc.Quests == nil {
		h.fail(w, r, errs.ErrNotFound)
		return
	}
	var req completeLevelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	caller, _ := userIDFrom(r.Context())
	u, err := h.svc.Quests.CompleteLevel(r.Context(), caller, req.LevelCompleted, req.PointsToAdd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userReply{User: model.ViewUser(*u)})
}

type bonusReply struct {
	User        model.UserView `json:"user"`
	BonusPoints int64          `json:"bonusPoints"`
}

func (h *handler) claimBonus(w http.ResponseWriter, r *http.Request) {
	if h.svc.Quests == nil {
		h.fail(w, r, errs.ErrNotFound)
		return
	}
	caller, _ := userIDFrom(r.Context())
	u, err := h.svc.Quests.ClaimDailyBonus(r.Context(), caller, h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bonusReply{User: model.ViewUser(*u), BonusPoints: h.svc.Quests.Bonus()})
}

// --- assistant ---

type summarizeRequest struct {
	convert.UserRequest
	Date *time.Time `json:"date,omitempty"`
}

func (h *handler) summarize(w http.ResponseWriter, r *http.Request) {
	if h.svc.Assistant == nil {
		h.fail(w, r, errs.ErrNotFound)
		return
	}
	var req summarizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	day := h.now()
	if req.Date != nil {
		day = *req.Date
	}
	summary, err := h.svc.Assistant.SummarizeDay(r.Context(), req.Identifier(), day)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

type askRequest struct {
	Question string `json:"question"`
}

func (h *handler) askEco(w http.ResponseWriter, r *http.Request) {
	if h.svc.Assistant == nil {
		h.fail(w, r, errs.ErrNotFound)
		return
	}
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	answer, err := h.svc.Assistant.AskEco(r.Context(), req.Question)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": answer})
}
