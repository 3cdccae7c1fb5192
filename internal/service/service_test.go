package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"foodieqa/internal/config"
	"foodieqa/internal/extract"
	"foodieqa/internal/model"
	"foodieqa/internal/prompt"
	"foodieqa/internal/repository"
	"foodieqa/internal/resultlog"
)

func TestMockService_Deterministic(t *testing.T) {
	m := NewMockService()
	strict := prompt.Prompt{System: "sys", User: "问题 选项有: （A) 甲\n请只提供字母选项作为答案。"}

	first, err := m.Complete(context.Background(), strict, nil)
	require.NoError(t, err)
	second, err := m.Complete(context.Background(), strict, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 1)
	assert.NotEqual(t, model.LetterNone, extract.FirstLetter(first))

	cot := prompt.Prompt{System: "End your response with 'Final Answer: [X]'", User: "q"}
	out, err := m.Complete(context.Background(), cot, nil)
	require.NoError(t, err)
	assert.NotEqual(t, model.LetterNone, extract.SentinelLetter(out), out)
}

func TestMockService_Errors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMockService().Complete(ctx, prompt.Prompt{}, nil)
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, context.Canceled)

	boom := errors.New("boom")
	_, err = NewScriptedService(func(prompt.Prompt) (string, error) { return "", boom }).Complete(context.Background(), prompt.Prompt{}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "generate mock: boom", err.Error())
}

func TestNewModelService_FallsBackToMock(t *testing.T) {
	cfg := config.DefaultAIConfig()
	cfg.APIKey = ""
	m, err := NewModelService(context.Background(), &cfg, cfg.Models.Answer)
	require.NoError(t, err)
	assert.Equal(t, "mock", m.Name())

	cfg.APIKey = "key"
	cfg.Provider = config.ProviderMock
	m, err = NewModelService(context.Background(), &cfg, cfg.Models.Answer)
	require.NoError(t, err)
	assert.Equal(t, "mock", m.Name())
}

func testCatalog() *model.DishCatalog {
	return &model.DishCatalog{DishesByCuisine: map[string][]string{
		"粤菜": {"白切鸡", "烧鹅"},
		"川菜": {"麻婆豆腐", "回锅肉"},
		"鲁菜": {},
	}}
}

func TestCatalogPrompt_SortedAndSkipsEmpty(t *testing.T) {
	got := CatalogPrompt(testCatalog())
	assert.True(t, strings.HasPrefix(got, "Available dishes by cuisine type:\n\n"))
	assert.Less(t, strings.Index(got, "川菜:"), strings.Index(got, "粤菜:"))
	assert.NotContains(t, got, "鲁菜")
	assert.Contains(t, got, "- 麻婆豆腐\n- 回锅肉\n")

	p := IdentifyPrompt(testCatalog())
	assert.Contains(t, p.System, "Selected dishes: [dish1, dish2, dish3]")
	assert.Equal(t, identifyUser, p.User)
}

func TestIdentify(t *testing.T) {
	questions := []model.Question{
		testQuestion("i1", model.CategoryFlavor, 0),
		testQuestion("i2", model.CategoryFlavor, 0),
		testQuestion("i3", model.CategoryFlavor, 0),
	}
	calls := 0
	m := NewScriptedService(func(p prompt.Prompt) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("rate limited")
		}
		return "I see tofu.\nSelected dishes: [麻婆豆腐, 回锅肉, 宫保鸡丁]", nil
	})
	s := NewIdentifierService(m, fakeImages{missing: map[string]bool{"i3": true}}, zap.NewNop())

	var progress []int
	preds, err := s.Identify(context.Background(), questions, testCatalog(), false, func(p []model.DishPrediction) {
		progress = append(progress, len(p))
	})
	require.NoError(t, err)
	require.Len(t, preds, 3)
	assert.Equal(t, []int{1, 2, 3}, progress)

	assert.Equal(t, []string{"麻婆豆腐", "回锅肉", "宫保鸡丁"}, preds[0].PredictedDishes)
	assert.Equal(t, "麻婆豆腐", preds[0].ActualDish)
	assert.Contains(t, preds[0].FullResponse, "I see tofu")

	assert.Equal(t, []string{"错误", "错误", "错误"}, preds[1].PredictedDishes)
	assert.Contains(t, preds[1].FullResponse, "rate limited")
	assert.Equal(t, []string{"错误", "错误", "错误"}, preds[2].PredictedDishes)
	assert.Equal(t, 2, calls)
}

func TestIdentify_MockPicksFromCatalog(t *testing.T) {
	s := NewIdentifierService(NewMockService(), fakeImages{}, nil)
	preds, err := s.Identify(context.Background(), []model.Question{testQuestion("m1", "", 0)}, testCatalog(), false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"麻婆豆腐", "回锅肉", "白切鸡"}, preds[0].PredictedDishes)
}

func TestIdentify_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewIdentifierService(NewMockService(), fakeImages{}, nil)
	preds, err := s.Identify(ctx, []model.Question{testQuestion("m1", "", 0)}, testCatalog(), false, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, preds)
}

func testAuth() *AuthService {
	return NewAuthService(config.ServerConfig{Username: "admin", Password: "pw", JWTSecret: "secret"})
}

func TestAuth_LoginAndValidate(t *testing.T) {
	s := testAuth()
	resp, err := s.Login("admin", "pw")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.ReviewerID, "reviewer_"))

	claims, err := s.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.ReviewerID, claims.ReviewerID)
	assert.NotNil(t, claims.ExpiresAt)
}

func TestAuth_Rejects(t *testing.T) {
	s := testAuth()
	_, err := s.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = NewAuthService(config.ServerConfig{Username: "admin"}).Login("admin", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewAuthService(config.ServerConfig{Username: "admin", Password: "pw", JWTSecret: "other"})
	resp, err := other.Login("admin", "pw")
	require.NoError(t, err)
	_, err = s.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := testAuth()
	expired.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	resp, err = expired.Login("admin", "pw")
	require.NoError(t, err)
	_, err = s.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &model.ReviewerClaims{ReviewerID: "x"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.ValidateToken(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func newTestManager(t *testing.T, runs repository.RunRepo) (*RunManager, string) {
	t.Helper()
	questions := []model.Question{
		testQuestion("r1", model.CategoryFlavor, 0),
		testQuestion("r2", model.CategoryPresent, 1),
		testQuestion("r3", model.CategoryRegion, 2),
	}
	e := newEvaluator(NewMockService(), fakeImages{}, WithRunRepo(runs))
	out := t.TempDir()
	defaults := config.DefaultConfig().Run
	m := NewRunManager(e, runs, questions, nil, defaults, out, zap.NewNop())
	t.Cleanup(m.Shutdown)
	return m, out
}

func TestRunManager_StartRun(t *testing.T) {
	runs := repository.NewMemoryRunRepo()
	m, out := newTestManager(t, runs)

	variant := int(prompt.VariantVisualCoT)
	initial, err := m.StartRun(model.StartRunRequest{Variant: &variant, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, initial.Status)
	assert.Equal(t, 2, initial.TotalQuestions)
	m.Wait()

	assert.False(t, m.Active(initial.RunID))
	stored, err := runs.GetSummary(context.Background(), initial.RunID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.RunStatusFinished, stored.Status)
	assert.Equal(t, 2, stored.Report.Overall().Total)

	logged, err := resultlog.ReadAll(filepath.Join(out, initial.RunID, resultlog.LogName(variant, false)))
	require.NoError(t, err)
	assert.Len(t, logged, 2)
	_, err = os.Stat(filepath.Join(out, initial.RunID, resultlog.SummaryName(variant, false)))
	assert.NoError(t, err)

	assert.ErrorIs(t, m.Cancel(initial.RunID), ErrRunNotFound)
}

func TestRunManager_RejectsBadRequests(t *testing.T) {
	m, _ := newTestManager(t, nil)
	unknown := 42
	for _, req := range []model.StartRunRequest{
		{Variant: &unknown},
		{Language: "fr"},
		{AugmentationMode: "web"},
		{Limit: -1},
	} {
		_, err := m.StartRun(req)
		assert.ErrorIs(t, err, ErrBadRequest)
	}

	adaptive := true
	opts, err := m.Options(model.StartRunRequest{Variant: &unknown, Adaptive: &adaptive})
	require.NoError(t, err)
	assert.True(t, opts.Adaptive)
	m.Shutdown()
}
