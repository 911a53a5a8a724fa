package handlers_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"civitas.backend/internal/infrastructure/providers"
	"civitas.backend/internal/infrastructure/repositories"
	"civitas.backend/internal/interfaces/http/handlers"
	"civitas.backend/internal/interfaces/http/middleware"
	"civitas.backend/internal/usecases"
	"civitas.backend/pkg/crypto"
	"civitas.backend/pkg/jwt"
)

// testOpsKey is the operations API key configured on the test router.
const testOpsKey = "ops-test-key"

type sliceQueue struct {
	mu   sync.Mutex
	jobs []interface{}
}

func (q *sliceQueue) Enqueue(_ context.Context, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, payload)
	return nil
}

type handlerFixture struct {
	router     *gin.Engine
	repo       *repositories.CitizenRepository
	jwtService *jwt.JWTService
	payment    *providers.MockPayment
	queue      *sliceQueue
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	require.NoError(t, db.Exec(`CREATE TABLE citizens (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING_PAYMENT',
		registration_status TEXT NOT NULL DEFAULT 'REGISTER_START',
		biometric_ref_id TEXT,
		payment_customer_id TEXT,
		payment_subscription_id TEXT,
		payment_invoice_id TEXT,
		payment_intent_id TEXT,
		current_period_end DATETIME,
		avatar_style TEXT,
		gender TEXT,
		temp_face_image_url TEXT,
		avatar_url TEXT,
		document_url TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME,
		banned_at DATETIME
	);`).Error)

	repo := repositories.NewCitizenRepository(db, 0)
	identity := providers.NewMockIdentity()
	biometric := providers.NewMockBiometricIndex()
	payment := providers.NewMockPayment()
	avatar := providers.NewMockAvatarStudio()
	document := providers.NewMockDocumentPress()
	queue := &sliceQueue{}

	dispatcher := usecases.NewAssetDispatcher(repo, queue)
	finalizer := usecases.NewProfileFinalizer(repo, avatar, document)
	rollback := usecases.NewRollbackUsecase(repo, identity, biometric, payment)
	resolver := usecases.NewCorrelationResolver(payment, 24*time.Hour)
	registrationUsecase := usecases.NewRegistrationUsecase(
		repo, identity, biometric, payment, dispatcher, finalizer, rollback, "plan_citizen_monthly")
	webhookUsecase := usecases.NewWebhookUsecase(repo, resolver, dispatcher, rollback)
	citizenUsecase := usecases.NewCitizenUsecase(repo, identity, payment)

	jwtService := jwt.NewJWTService("test-secret", time.Minute, time.Hour)
	auth := middleware.AuthMiddleware(jwtService)

	opsKeyHash, err := crypto.HashSecret(testOpsKey)
	require.NoError(t, err, "hash ops key")
	adminAuth := middleware.APIKeyOrAdminMiddleware(jwtService, opsKeyHash)

	registrationHandler := handlers.NewRegistrationHandler(registrationUsecase)
	webhookHandler := handlers.NewWebhookHandler(webhookUsecase)
	citizenHandler := handlers.NewCitizenHandler(citizenUsecase)

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.POST("/registrations", registrationHandler.Register)
	v1.GET("/registrations/:id", auth, registrationHandler.GetRegistration)
	v1.GET("/citizens/:id", auth, citizenHandler.GetCitizen)
	v1.DELETE("/citizens/:id", auth, citizenHandler.DeleteCitizen)
	v1.POST("/admin/citizens/:id/ban", adminAuth, citizenHandler.BanCitizen)
	v1.POST("/admin/citizens/:id/unban", adminAuth, citizenHandler.UnbanCitizen)
	v1.POST("/webhooks/payment", middleware.WebhookSignatureMiddleware("whsec_test"), webhookHandler.HandlePaymentWebhook)

	return &handlerFixture{
		router:     r,
		repo:       repo,
		jwtService: jwtService,
		payment:    payment,
		queue:      queue,
	}
}

func (f *handlerFixture) token(t *testing.T, subject, role string) string {
	t.Helper()
	pair, err := f.jwtService.GenerateTokenPair(subject, subject+"@example.com", role)
	require.NoError(t, err)
	return "Bearer " + pair.AccessToken
}
