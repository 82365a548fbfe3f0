package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-internship-api/internal/dto"
	"github.com/noah-isme/sma-internship-api/internal/models"
	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
)

type stubPreferenceRepo struct {
	stored     map[string][]models.Preference
	replaceErr error
	rows       []models.PreferenceReportRow
	calls      int
}

func newStubPreferenceRepo() *stubPreferenceRepo {
	return &stubPreferenceRepo{stored: make(map[string][]models.Preference)}
}

func (s *stubPreferenceRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Preference, error) {
	return s.stored[studentID], nil
}

func (s *stubPreferenceRepo) Replace(ctx context.Context, studentID string, prefs []models.Preference) error {
	s.calls++
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.stored[studentID] = append([]models.Preference(nil), prefs...)
	return nil
}

func (s *stubPreferenceRepo) ReportRows(ctx context.Context, classID string) ([]models.PreferenceReportRow, error) {
	return s.rows, nil
}

type stubCatalogRepo struct {
	companies []models.Company
	jobs      map[string][]models.InternshipJob
	listCalls int
}

func (s *stubCatalogRepo) ListApproved(ctx context.Context) ([]models.Company, error) {
	s.listCalls++
	return s.companies, nil
}

func (s *stubCatalogRepo) JobsByCompany(ctx context.Context, ids []string) (map[string][]models.InternshipJob, error) {
	return s.jobs, nil
}

type stubClassRepo struct {
	classes  map[string]*models.Class
	homeroom map[string]*models.Class
	err      error
}

func (s *stubClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if s.err != nil {
		return nil, s.err
	}
	if class, ok := s.classes[id]; ok {
		return class, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubClassRepo) FindHomeroomClass(ctx context.Context, teacherID string) (*models.Class, error) {
	if s.err != nil {
		return nil, s.err
	}
	if class, ok := s.homeroom[teacherID]; ok {
		return class, nil
	}
	return nil, sql.ErrNoRows
}

func newTestPreferenceService(prefs *stubPreferenceRepo, config PreferenceConfig) *PreferenceService {
	catalog := &stubCatalogRepo{
		companies: []models.Company{{ID: "a", Name: "Acme", Status: models.CompanyStatusApproved}},
		jobs:      map[string][]models.InternshipJob{"a": {{ID: "j1", CompanyID: "a", Title: "Backend"}}},
	}
	classes := &stubClassRepo{
		classes:  map[string]*models.Class{"c1": {ID: "c1", Name: "3A"}, "c2": {ID: "c2", Name: "3B"}},
		homeroom: map[string]*models.Class{"t1": {ID: "c1", Name: "3A"}},
	}
	return NewPreferenceService(prefs, catalog, classes, nil, zap.NewNop(), config)
}

func TestPreferenceSubmitDropsInvalidRanksAndEmptyCompanies(t *testing.T) {
	repo := newStubPreferenceRepo()
	svc := newTestPreferenceService(repo, PreferenceConfig{})

	res, err := svc.Submit(context.Background(), "s1", dto.SubmitPreferencesRequest{Preferences: []models.PreferenceEntry{
		{Rank: 1, CompanyID: "a", JobID: strPtr("j1")},
		{Rank: 0, CompanyID: "b"},
		{Rank: 6, CompanyID: "c"},
		{Rank: 2, CompanyID: ""},
		{Rank: 3, CompanyID: "d", JobID: strPtr("")},
	}})
	require.NoError(t, err)
	assert.Equal(t, "preferences submitted", res.Message)
	require.Len(t, repo.stored["s1"], 2)
	assert.Equal(t, 1, repo.stored["s1"][0].PreferenceOrder)
	assert.Equal(t, "j1", *repo.stored["s1"][0].JobID)
	assert.Equal(t, 3, repo.stored["s1"][1].PreferenceOrder)
	assert.Nil(t, repo.stored["s1"][1].JobID)
}

func TestPreferenceSubmitLaterRankWins(t *testing.T) {
	repo := newStubPreferenceRepo()
	svc := newTestPreferenceService(repo, PreferenceConfig{})

	_, err := svc.Submit(context.Background(), "s1", dto.SubmitPreferencesRequest{Preferences: []models.PreferenceEntry{
		{Rank: 1, CompanyID: "a"},
		{Rank: 1, CompanyID: "b"},
	}})
	require.NoError(t, err)
	require.Len(t, repo.stored["s1"], 1)
	assert.Equal(t, "b", repo.stored["s1"][0].CompanyID)
}

func TestPreferenceSubmitEmptyClears(t *testing.T) {
	repo := newStubPreferenceRepo()
	repo.stored["s1"] = []models.Preference{{ID: "old", StudentID: "s1", PreferenceOrder: 1, CompanyID: "a"}}
	svc := newTestPreferenceService(repo, PreferenceConfig{})

	res, err := svc.Submit(context.Background(), "s1", dto.SubmitPreferencesRequest{})
	require.NoError(t, err)
	assert.Equal(t, "preferences cleared", res.Message)
	assert.Empty(t, repo.stored["s1"])
	assert.Equal(t, 1, repo.calls)
}

func TestPreferenceSubmitIsIdempotentInEndState(t *testing.T) {
	repo := newStubPreferenceRepo()
	svc := newTestPreferenceService(repo, PreferenceConfig{})
	req := dto.SubmitPreferencesRequest{Preferences: []models.PreferenceEntry{{Rank: 2, CompanyID: "a"}, {Rank: 4, CompanyID: "b"}}}

	for i := 0; i < 3; i++ {
		_, err := svc.Submit(context.Background(), "s1", req)
		require.NoError(t, err)
	}
	require.Len(t, repo.stored["s1"], 2)
	assert.Equal(t, 2, repo.stored["s1"][0].PreferenceOrder)
	assert.Equal(t, 4, repo.stored["s1"][1].PreferenceOrder)
}

func TestPreferenceSubmitDuplicates(t *testing.T) {
	req := dto.SubmitPreferencesRequest{Preferences: []models.PreferenceEntry{{Rank: 1, CompanyID: "a"}, {Rank: 2, CompanyID: "a"}}}

	repo := newStubPreferenceRepo()
	_, err := newTestPreferenceService(repo, PreferenceConfig{}).Submit(context.Background(), "s1", req)
	require.NoError(t, err)
	assert.Len(t, repo.stored["s1"], 2)

	strict := newStubPreferenceRepo()
	_, err = newTestPreferenceService(strict, PreferenceConfig{RejectDuplicates: true}).Submit(context.Background(), "s1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Zero(t, strict.calls)
}

func TestPreferenceSubmitStorageFailure(t *testing.T) {
	repo := newStubPreferenceRepo()
	repo.replaceErr = errors.New("tx aborted")
	svc := newTestPreferenceService(repo, PreferenceConfig{})

	_, err := svc.Submit(context.Background(), "s1", dto.SubmitPreferencesRequest{Preferences: []models.PreferenceEntry{{Rank: 1, CompanyID: "a"}}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestPreferenceForm(t *testing.T) {
	repo := newStubPreferenceRepo()
	repo.stored["s1"] = []models.Preference{
		{StudentID: "s1", PreferenceOrder: 2, CompanyID: "a", JobID: strPtr("j1")},
		{StudentID: "s1", PreferenceOrder: 9, CompanyID: "zzz"},
	}
	svc := newTestPreferenceService(repo, PreferenceConfig{})

	form, err := svc.Form(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, form.Companies, 1)
	assert.Len(t, form.Companies[0].Jobs, 1)
	assert.Nil(t, form.Selected[0])
	require.NotNil(t, form.Selected[1])
	assert.Equal(t, "a", *form.Selected[1])
	assert.Equal(t, "j1", *form.Jobs[1])
}

func TestResolveClass(t *testing.T) {
	svc := newTestPreferenceService(newStubPreferenceRepo(), PreferenceConfig{})
	ctx := context.Background()

	class, err := svc.ResolveClass(ctx, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}, "")
	require.NoError(t, err)
	assert.Equal(t, "c1", class.ID)

	_, err = svc.ResolveClass(ctx, &models.JWTClaims{UserID: "t2", Role: models.RoleTeacher}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.ResolveClass(ctx, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}, "c2")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	class, err = svc.ResolveClass(ctx, &models.JWTClaims{UserID: "d1", Role: models.RoleDirector}, "c2")
	require.NoError(t, err)
	assert.Equal(t, "3B", class.Name)

	_, err = svc.ResolveClass(ctx, &models.JWTClaims{UserID: "d1", Role: models.RoleDirector}, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.ResolveClass(ctx, &models.JWTClaims{UserID: "d1", Role: models.RoleAdmin}, "")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.ResolveClass(ctx, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}, "")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReviewPreferences(t *testing.T) {
	repo := newStubPreferenceRepo()
	repo.rows = []models.PreferenceReportRow{prefRow("s1", "Sam", "1001", 1, "Acme", "")}
	svc := newTestPreferenceService(repo, PreferenceConfig{Location: time.FixedZone("CST", 8*3600)})

	report, err := svc.ReviewPreferences(context.Background(), &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}, "")
	require.NoError(t, err)
	assert.Equal(t, "3A", report.ClassName)
	assert.Equal(t, "CST", report.GeneratedAt.Location().String())
	assert.Equal(t, []models.TallyEntry{{Company: "Acme", Count: 1}}, report.CompanyTally)
}
