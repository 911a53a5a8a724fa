package usecases

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"civitas.backend/internal/domain/entities"
	"civitas.backend/internal/domain/providers"
	"civitas.backend/internal/domain/repositories"
	"civitas.backend/pkg/logger"
)

// ProfileFinalizer performs the post-payment tail of the saga: avatar
// generation, credential-document assembly and profile completion. It is
// shared by the orchestrator (inline, after winning the dispatch gate) and
// the queue worker, and it is idempotent by citizen id: a record that already
// reached COMPLETE is left untouched, which makes queue redelivery safe.
type ProfileFinalizer struct {
	citizenRepo repositories.CitizenRepository
	avatar      providers.AvatarStudio
	document    providers.DocumentPress
}

// NewProfileFinalizer creates a new profile finalizer
func NewProfileFinalizer(
	citizenRepo repositories.CitizenRepository,
	avatar providers.AvatarStudio,
	document providers.DocumentPress,
) *ProfileFinalizer {
	return &ProfileFinalizer{
		citizenRepo: citizenRepo,
		avatar:      avatar,
		document:    document,
	}
}

// Finalize generates the avatar and credential document for the citizen and
// promotes the record to COMPLETE / ACTIVE_COMPLETE. Progress may be nil.
func (f *ProfileFinalizer) Finalize(ctx context.Context, citizenID string, progress entities.ProgressFunc) error {
	report := func(ev entities.ProgressEvent) {
		if progress != nil {
			progress(ev)
		}
	}

	citizen, err := f.citizenRepo.GetByID(ctx, citizenID)
	if err != nil {
		return err
	}
	if citizen.RegistrationStatus.AtLeast(entities.StateComplete) {
		logger.Debug(ctx, "finalize skipped, registration already complete",
			zap.String("citizen_id", citizenID))
		return nil
	}

	report(entities.ProgressEvent{Stage: entities.StageAssets, Percent: 75, Message: "Generating avatar"})

	styleRef := citizen.AvatarStyle
	if styleRef == "" {
		styles, err := f.avatar.ListStyles(ctx, citizen.Gender)
		if err != nil {
			return err
		}
		if len(styles) > 0 {
			styleRef = styles[0].Ref
		}
	}

	avatarURL := citizen.AvatarURL.String
	if !citizen.AvatarURL.Valid {
		gen, err := f.avatar.Generate(ctx, citizen.TempFaceImageURL, styleRef)
		if err != nil {
			return err
		}
		avatarURL = gen.ImageURL
	}

	report(entities.ProgressEvent{Stage: entities.StageDocument, Percent: 90, Message: "Assembling citizen passport"})

	documentURL := citizen.DocumentURL.String
	if !citizen.DocumentURL.Valid {
		documentURL, err = f.document.Assemble(ctx, providers.PassportProfile{
			CitizenID: citizen.ID,
			Email:     citizen.Email,
			AvatarURL: avatarURL,
			IssuedAt:  time.Now(),
		})
		if err != nil {
			return err
		}
	}

	_, err = f.citizenRepo.Advance(ctx, citizenID, entities.StateComplete, &entities.RegistrationPatch{
		AvatarURL:   null.StringFrom(avatarURL),
		DocumentURL: null.StringFrom(documentURL),
		Status:      null.StringFrom(string(entities.CitizenStatusActiveComplete)),
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "registration finalized",
		zap.String("citizen_id", citizenID),
		zap.String("document_url", documentURL))
	return nil
}
