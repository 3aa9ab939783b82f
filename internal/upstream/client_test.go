package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edusuite/enrollment-gateway/internal/models"
	"github.com/edusuite/enrollment-gateway/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := New(config.CoreAPIConfig{BaseURL: server.URL, Timeout: 5 * time.Second, BearerToken: "token-1"}, zap.NewNop())
	return client, server
}

func TestClientCreateTutorDecodesEnvelope(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/tutor", r.URL.Path)

		var payload models.TutorPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Diallo", payload.Name)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"tutor-9"}}`))
	})

	id, err := client.CreateTutor(context.Background(), models.TutorPayload{Name: "Diallo", FirstName: "Awa", Phone: "0600", TutorType: "MOTHER"})
	require.NoError(t, err)
	assert.Equal(t, "tutor-9", id)
	assert.Equal(t, "Bearer token-1", gotAuth)
}

func TestClientDecodesBareBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"s1","name":"Keita","first_name":"Mamadou"}`))
	})

	student, err := client.GetStudent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Keita", student.Name)
}

func TestClientUpstreamErrorMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"message":"registration number already used"}}`))
	})

	_, err := client.CreateRegistration(context.Background(), "s1", models.RegistrationDraft{ClassID: "c1", AcademicYearID: "y1", RegistrationDate: "2026-09-01"})
	require.Error(t, err)

	var upErr *Error
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusConflict, upErr.StatusCode)
	assert.Equal(t, "registration number already used", upErr.Message)
}

func TestClientUploadDocumentMultipart(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "reg-1", r.FormValue("registration_id"))
		assert.Equal(t, "Birth certificate", r.FormValue("label"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "acte.pdf", header.Filename)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"doc-3"}}`))
	})

	id, err := client.UploadDocument(context.Background(), DocumentCreate{
		StudentID:      "s1",
		RegistrationID: "reg-1",
		DocumentTypeID: "dt-1",
		Label:          "Birth certificate",
	}, FilePart{Field: "file", Filename: "acte.pdf", ContentType: "application/pdf", Reader: strings.NewReader("%PDF-")})
	require.NoError(t, err)
	assert.Equal(t, "doc-3", id)
}

func TestClientAssignTutorsNoContent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/student/assign-tutor", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.AssignTutors(context.Background(), "s1", []models.TutorAssignment{{TutorID: "t1", IsLegal: true}})
	require.NoError(t, err)
}
