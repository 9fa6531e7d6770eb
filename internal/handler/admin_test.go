package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kapu/formsmith-server-go/internal/formstore"
)

func adminLogin(t *testing.T, env *testEnv) string {
	t.Helper()
	w := postJSON(t, env, "/api/admin/login", `{"password":"`+testAdminPassword+`"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", w.Code, w.Body.String())
	}
	var resp LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token")
	}
	return resp.Token
}

func adminRequest(t *testing.T, env *testEnv, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func TestAdminLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t, routerTestConfig(t), &stubLLM{})

	w := postJSON(t, env, "/api/admin/login", `{"password":"wrong"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, routerTestConfig(t), &stubLLM{})

	w := adminRequest(t, env, http.MethodGet, "/api/admin/forms", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w = adminRequest(t, env, http.MethodGet, "/api/admin/forms", "not-a-jwt", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", w.Code)
	}
}

func TestAdminListForms(t *testing.T) {
	env := newTestEnv(t, routerTestConfig(t), &stubLLM{responses: []string{rsvpExchange}})
	created := translateRSVP(t, env, "An RSVP form for the launch party")
	token := adminLogin(t, env)

	w := adminRequest(t, env, http.MethodGet, "/api/admin/forms", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Forms []FormSummary `json:"forms"`
		Count int           `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if resp.Count != 1 || len(resp.Forms) != 1 {
		t.Fatalf("unexpected list: %+v", resp)
	}
	if resp.Forms[0].FormID != created.FormID || resp.Forms[0].Title != "Event RSVP" {
		t.Fatalf("unexpected form summary: %+v", resp.Forms[0])
	}
}

func TestAdminUpdateForm(t *testing.T) {
	env := newTestEnv(t, routerTestConfig(t), &stubLLM{responses: []string{rsvpExchange}})
	created := translateRSVP(t, env, "An RSVP form for the launch party")
	token := adminLogin(t, env)

	body := `{"title":"Updated RSVP","fields":[
		{"name":"full_name","label":"Full Name","type":"text","required":true},
		{"name":"attending","label":"Attending","type":"boolean"}
	]}`
	w := adminRequest(t, env, http.MethodPut, "/api/admin/forms/"+created.FormID, token, body)
	if w.Code != http.StatusOK {
		t.Fatalf("update status %d: %s", w.Code, w.Body.String())
	}

	var resp FormResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if resp.Title != "Updated RSVP" || len(resp.Schema.Fields) != 2 {
		t.Fatalf("unexpected updated form: %+v", resp)
	}

	// 편집 결과가 저장소에 반영되어야 한다.
	w = adminRequest(t, env, http.MethodGet, "/api/admin/forms/"+created.FormID+"/dashboard", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard status %d: %s", w.Code, w.Body.String())
	}
	var dashboard DashboardResponse
	if err := json.Unmarshal(w.Body.Bytes(), &dashboard); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if dashboard.Title != "Updated RSVP" {
		t.Fatalf("expected updated title, got %q", dashboard.Title)
	}
}

func TestAdminUpdateFormRejectsEmptySchema(t *testing.T) {
	env := newTestEnv(t, routerTestConfig(t), &stubLLM{responses: []string{rsvpExchange}})
	created := translateRSVP(t, env, "An RSVP form for the launch party")
	token := adminLogin(t, env)

	body := `{"title":"Broken","fields":[{"label":"","type":"text"}]}`
	w := adminRequest(t, env, http.MethodPut, "/api/admin/forms/"+created.FormID, token, body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAdminUpdateFormMissing(t *testing.T) {
	env := newTestEnv(t, routerTestConfig(t), &stubLLM{})
	token := adminLogin(t, env)

	body := `{"title":"X","fields":[{"name":"a","label":"A","type":"text"}]}`
	w := adminRequest(t, env, http.MethodPut, "/api/admin/forms/"+formstore.FormID("never translated"), token, body)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAdminDeleteForm(t *testing.T) {
	env := newTestEnv(t, routerTestConfig(t), &stubLLM{responses: []string{rsvpExchange}})
	created := translateRSVP(t, env, "An RSVP form for the launch party")
	token := adminLogin(t, env)

	w := adminRequest(t, env, http.MethodDelete, "/api/admin/forms/"+created.FormID, token, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status %d: %s", w.Code, w.Body.String())
	}

	w = adminRequest(t, env, http.MethodGet, "/api/admin/forms/"+created.FormID+"/dashboard", token, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}

	// 같은 폼을 다시 지우면 이미 없으므로 404 다.
	w = adminRequest(t, env, http.MethodDelete, "/api/admin/forms/"+created.FormID, token, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeat delete, got %d", w.Code)
	}
}

func TestAdminDashboard(t *testing.T) {
	env := newTestEnv(t, routerTestConfig(t), &stubLLM{responses: []string{rsvpExchange}})
	created := translateRSVP(t, env, "An RSVP form for the launch party")

	for _, meal := range []string{"Veg", "Veg", "Meat"} {
		body := `{"values":{"full_name":"Guest Name","email":"g@example.com","meal":"` + meal + `"}}`
		w := postJSON(t, env, "/api/forms/"+created.FormID+"/submissions", body, testAPIKey)
		if w.Code != http.StatusCreated {
			t.Fatalf("seed submit failed: %d %s", w.Code, w.Body.String())
		}
	}

	token := adminLogin(t, env)
	w := adminRequest(t, env, http.MethodGet, "/api/admin/forms/"+created.FormID+"/dashboard", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard status %d: %s", w.Code, w.Body.String())
	}

	var resp DashboardResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if resp.Submissions != 3 {
		t.Fatalf("expected 3 submissions, got %d", resp.Submissions)
	}
	if len(resp.Histograms) != 1 {
		t.Fatalf("expected one histogram for meal, got %+v", resp.Histograms)
	}
	meal := resp.Histograms[0]
	if meal.Field != "meal" || meal.Counts["Veg"] != 2 || meal.Counts["Meat"] != 1 {
		t.Fatalf("unexpected histogram: %+v", meal)
	}
	if len(resp.Recent) != 3 {
		t.Fatalf("expected 3 recent rows, got %d", len(resp.Recent))
	}
}

func TestAdminDashboardEmptyForm(t *testing.T) {
	env := newTestEnv(t, routerTestConfig(t), &stubLLM{responses: []string{rsvpExchange}})
	created := translateRSVP(t, env, "An RSVP form for the launch party")
	token := adminLogin(t, env)

	w := adminRequest(t, env, http.MethodGet, "/api/admin/forms/"+created.FormID+"/dashboard", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard status %d: %s", w.Code, w.Body.String())
	}

	var resp DashboardResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if resp.Submissions != 0 || len(resp.Recent) != 0 {
		t.Fatalf("expected empty dashboard, got %+v", resp)
	}
}

func TestAdminInsights(t *testing.T) {
	env := newTestEnv(t, routerTestConfig(t), &stubLLM{responses: []string{
		rsvpExchange,
		"Most guests prefer the vegetarian option.",
	}})
	created := translateRSVP(t, env, "An RSVP form for the launch party")

	body := `{"values":{"full_name":"Guest Name","email":"g@example.com","meal":"Veg"}}`
	if w := postJSON(t, env, "/api/forms/"+created.FormID+"/submissions", body, testAPIKey); w.Code != http.StatusCreated {
		t.Fatalf("seed submit failed: %d", w.Code)
	}

	token := adminLogin(t, env)
	w := adminRequest(t, env, http.MethodPost, "/api/admin/forms/"+created.FormID+"/insights", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("insights status %d: %s", w.Code, w.Body.String())
	}

	var resp InsightResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode insights: %v", err)
	}
	if resp.Insight != "Most guests prefer the vegetarian option." {
		t.Fatalf("unexpected insight: %q", resp.Insight)
	}
	if resp.Submissions != 1 {
		t.Fatalf("expected 1 submission, got %d", resp.Submissions)
	}
}

func TestAdminInsightsNoSubmissions(t *testing.T) {
	env := newTestEnv(t, routerTestConfig(t), &stubLLM{responses: []string{rsvpExchange}})
	created := translateRSVP(t, env, "An RSVP form for the launch party")
	token := adminLogin(t, env)

	w := adminRequest(t, env, http.MethodPost, "/api/admin/forms/"+created.FormID+"/insights", token, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAdminUsageRecent(t *testing.T) {
	env := newTestEnv(t, routerTestConfig(t), &stubLLM{})
	token := adminLogin(t, env)

	w := adminRequest(t, env, http.MethodGet, "/api/admin/usage/recent?days=7", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("usage status %d: %s", w.Code, w.Body.String())
	}

	var resp UsageListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode usage: %v", err)
	}
	if len(resp.Usages) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(resp.Usages))
	}
	if resp.TotalTokens != 40 || resp.TotalRequestCount != 3 {
		t.Fatalf("unexpected totals: %+v", resp)
	}
}

func TestAdminUsageRejectsBadDays(t *testing.T) {
	env := newTestEnv(t, routerTestConfig(t), &stubLLM{})
	token := adminLogin(t, env)

	w := adminRequest(t, env, http.MethodGet, "/api/admin/usage/recent?days=zero", token, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
