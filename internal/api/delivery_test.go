package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wirlhawk/skillswap-sub000/internal/models"
	"github.com/Wirlhawk/skillswap-sub000/internal/services"
	"github.com/Wirlhawk/skillswap-sub000/internal/workflow"
)

type upload struct {
	filename    string
	content     string
	description string
	public      string
}

// deliveryRequest builds a multipart delivery form
func deliveryRequest(t *testing.T, method, path string, fields map[string]string, uploads []upload) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, u := range uploads {
		part, err := w.CreateFormFile("files", u.filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(u.content))
		require.NoError(t, err)
		require.NoError(t, w.WriteField("descriptions", u.description))
		require.NoError(t, w.WriteField("public", u.public))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

type draftBody struct {
	Draft *workflow.DeliveryDraft `json:"draft"`
}

func TestDeliveryDraftAndSubmit(t *testing.T) {
	e := newAPIEnv(t)
	order := e.startedOrder()
	base := "/api/v1/orders/" + order.ID.String()

	// Save a draft with one file
	req := deliveryRequest(t, http.MethodPut, base+"/delivery/draft",
		map[string]string{"message": "Final logo attached"},
		[]upload{{filename: "logo.svg", content: "<svg/>", description: "Primary mark", public: "true"}})
	rec := e.send(req, e.seller)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[draftBody](t, rec).Draft
	require.NotNil(t, saved)
	require.Len(t, saved.Files, 1)
	assert.True(t, saved.Files[0].Staged())

	rec = e.do(http.MethodGet, base+"/delivery/draft", e.client, nil)
	requireError(t, rec, http.StatusForbidden, "AUTHORIZATION_ERROR")

	rec = e.do(http.MethodGet, base+"/delivery/draft", e.seller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	loaded := decode[draftBody](t, rec).Draft
	require.NotNil(t, loaded)
	assert.Equal(t, "Final logo attached", loaded.Message)
	require.Len(t, loaded.Files, 1)

	// The staged blob is served
	rec = e.do(http.MethodGet, loaded.Files[0].URL, e.client, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<svg/>", rec.Body.String())

	// Submit, keeping the staged file and adding a private one
	staged, err := json.Marshal([]map[string]interface{}{
		{"id": loaded.Files[0].ID, "description": "Primary mark", "is_public": true},
	})
	require.NoError(t, err)
	req = deliveryRequest(t, http.MethodPost, base+"/delivery",
		map[string]string{
			"message":          loaded.Message,
			"mark_as_complete": "true",
			"staged_files":     string(staged),
		},
		[]upload{{filename: "source.txt", content: "layered source notes", description: "", public: "false"}})
	rec = e.send(req, e.seller)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	result := decode[services.DeliveryResult](t, rec)
	assert.Equal(t, models.OrderStatusDone, result.Order.Status)
	require.Len(t, result.Attachments, 2)
	assert.Equal(t, loaded.Files[0].URL, result.Attachments[0].URL)
	assert.Equal(t, "Primary mark", result.Attachments[0].Description)
	assert.False(t, result.Attachments[1].IsPublic)
	assert.Equal(t, "text/plain; charset=utf-8", result.Attachments[1].MimeType)

	// The client only sees public attachments
	rec = e.do(http.MethodGet, base, e.client, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.OrderWithDetails](t, rec).Attachments, 1)

	rec = e.do(http.MethodGet, base, e.seller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.OrderWithDetails](t, rec).Attachments, 2)

	rec = e.do(http.MethodGet, base+"/delivery/draft", e.seller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[draftBody](t, rec).Draft)
}

func TestSubmitDeliveryRejections(t *testing.T) {
	e := newAPIEnv(t)
	order := e.startedOrder()
	path := "/api/v1/orders/" + order.ID.String() + "/delivery"

	rec := e.send(deliveryRequest(t, http.MethodPost, path, map[string]string{"message": "  "}, nil), e.seller)
	requireError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = e.send(deliveryRequest(t, http.MethodPost, path, map[string]string{"message": "ok"}, nil), e.client)
	requireError(t, rec, http.StatusForbidden, "AUTHORIZATION_ERROR")

	rec = e.send(deliveryRequest(t, http.MethodPost, path, map[string]string{"message": "ok", "mark_as_complete": "maybe"}, nil), e.seller)
	body := requireError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	assert.Contains(t, body.Fields, "mark_as_complete")

	rec = e.send(deliveryRequest(t, http.MethodPost, path, map[string]string{
		"message":      "ok",
		"staged_files": `[{"id":"not-on-the-draft","is_public":true}]`,
	}, nil), e.seller)
	body = requireError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	assert.Contains(t, body.Fields, "staged_files")

	rec = e.do(http.MethodPost, path, e.seller, map[string]string{"message": "json is not a form"})
	requireError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	pending := e.createOrder()
	rec = e.send(deliveryRequest(t, http.MethodPost, "/api/v1/orders/"+pending.ID.String()+"/delivery", map[string]string{"message": "ok"}, nil), e.seller)
	requireError(t, rec, http.StatusConflict, "STATE_ERROR")
}

type milestonesBody struct {
	Milestones []models.Milestone `json:"milestones"`
	IDMap      map[string]string  `json:"id_map"`
	Progress   int                `json:"progress"`
}

func TestMilestoneEndpoints(t *testing.T) {
	e := newAPIEnv(t)
	order := e.startedOrder()
	base := "/api/v1/orders/" + order.ID.String() + "/milestones"
	due := time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339)

	rec := e.do(http.MethodPost, base, e.seller, map[string]interface{}{"title": "Concepts", "estimated_date": due})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	concepts := decode[models.Milestone](t, rec)
	assert.Contains(t, rec.Body.String(), `"tone":`)

	rec = e.do(http.MethodPost, base, e.client, map[string]interface{}{"title": "Sneaky", "estimated_date": due})
	requireError(t, rec, http.StatusForbidden, "AUTHORIZATION_ERROR")

	rec = e.do(http.MethodPost, base+"/commit", e.seller, map[string]interface{}{
		"changes": []map[string]interface{}{
			{"kind": "create", "id": "temp-1", "create": map[string]interface{}{"title": "Kickoff", "estimated_date": due}},
			{"kind": "reorder", "id": "temp-1", "position": 0},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	committed := decode[milestonesBody](t, rec)
	require.Len(t, committed.Milestones, 2)
	assert.Equal(t, "Kickoff", committed.Milestones[0].Title)
	assert.Equal(t, committed.Milestones[0].ID.String(), committed.IDMap["temp-1"])

	rec = e.do(http.MethodPatch, "/api/v1/milestones/"+concepts.ID.String(), e.seller, map[string]interface{}{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotNil(t, decode[models.Milestone](t, rec).CompletedDate)

	rec = e.do(http.MethodGet, base, e.client, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[milestonesBody](t, rec)
	assert.Equal(t, 50, listed.Progress)

	rec = e.do(http.MethodGet, base, e.stranger, nil)
	requireError(t, rec, http.StatusForbidden, "AUTHORIZATION_ERROR")

	rec = e.do(http.MethodPost, "/api/v1/milestones/"+concepts.ID.String()+"/reorder", e.seller, map[string]interface{}{})
	body := requireError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	assert.Contains(t, body.Fields, "position")

	rec = e.do(http.MethodPost, "/api/v1/milestones/"+concepts.ID.String()+"/reorder", e.seller, map[string]interface{}{"position": 0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Concepts", decode[milestonesBody](t, rec).Milestones[0].Title)

	rec = e.do(http.MethodDelete, "/api/v1/milestones/"+concepts.ID.String(), e.seller, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(http.MethodGet, base, e.seller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed = decode[milestonesBody](t, rec)
	require.Len(t, listed.Milestones, 1)
	assert.Equal(t, 0, listed.Milestones[0].Position)
}

func TestReviewEndpoints(t *testing.T) {
	e := newAPIEnv(t)
	order := e.startedOrder()
	base := "/api/v1/orders/" + order.ID.String()
	review := map[string]interface{}{"rating": 5, "comment": "Great work, delivered on time"}

	rec := e.do(http.MethodPost, base+"/review", e.client, review)
	requireError(t, rec, http.StatusConflict, "STATE_ERROR")

	rec = e.send(deliveryRequest(t, http.MethodPost, base+"/delivery",
		map[string]string{"message": "All done", "mark_as_complete": "true"}, nil), e.seller)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(http.MethodGet, base+"/review", e.seller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"review":null}`, rec.Body.String())

	rec = e.do(http.MethodPost, base+"/review", e.seller, review)
	requireError(t, rec, http.StatusForbidden, "AUTHORIZATION_ERROR")

	rec = e.do(http.MethodPost, base+"/review", e.client, map[string]interface{}{"rating": 9, "comment": "short"})
	body := requireError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	assert.Contains(t, body.Fields, "rating")
	assert.Contains(t, body.Fields, "comment")

	rec = e.do(http.MethodPost, base+"/review", e.client, review)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(http.MethodPost, base+"/review", e.client, review)
	requireError(t, rec, http.StatusConflict, "CONFLICT")

	rec = e.do(http.MethodGet, base+"/review", e.seller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Great work, delivered on time")

	rec = e.do(http.MethodGet, "/api/v1/sellers/"+e.seller.ID.String()+"/rating", e.stranger, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rating := decode[services.SellerRating](t, rec)
	assert.Equal(t, int64(1), rating.Count)
	assert.Equal(t, 5.0, rating.Average)

	rec = e.do(http.MethodGet, base+"/capabilities", e.client, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[services.OrderCapabilities](t, rec).CanReview)
}
