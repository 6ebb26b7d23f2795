package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"learncircle/pkg/domain"
)

const migrateLockID int64 = 51827304

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&RoleRequestModel{},
			&CourseModel{},
			&ChapterModel{},
			&QuizModel{},
			&ChoiceModel{},
			&CircleModel{},
			&CircleMemberModel{},
			&CircleCourseModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND constraint_name = 'chapter_models_course_id_fkey'
				) THEN
					ALTER TABLE chapter_models
					ADD CONSTRAINT chapter_models_course_id_fkey
					FOREIGN KEY (course_id) REFERENCES course_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND constraint_name = 'quiz_models_chapter_id_fkey'
				) THEN
					ALTER TABLE quiz_models
					ADD CONSTRAINT quiz_models_chapter_id_fkey
					FOREIGN KEY (chapter_id) REFERENCES chapter_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND constraint_name = 'choice_models_quiz_id_fkey'
				) THEN
					ALTER TABLE choice_models
					ADD CONSTRAINT choice_models_quiz_id_fkey
					FOREIGN KEY (quiz_id) REFERENCES quiz_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND constraint_name = 'circle_member_models_circle_id_fkey'
				) THEN
					ALTER TABLE circle_member_models
					ADD CONSTRAINT circle_member_models_circle_id_fkey
					FOREIGN KEY (circle_id) REFERENCES circle_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND constraint_name = 'circle_course_models_circle_id_fkey'
				) THEN
					ALTER TABLE circle_course_models
					ADD CONSTRAINT circle_course_models_circle_id_fkey
					FOREIGN KEY (circle_id) REFERENCES circle_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND constraint_name = 'circle_course_models_course_id_fkey'
				) THEN
					ALTER TABLE circle_course_models
					ADD CONSTRAINT circle_course_models_course_id_fkey
					FOREIGN KEY (course_id) REFERENCES course_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "name", "phone", "role", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUsersByIDs returns the users that exist, in the order of ids.
func (s *GormStore) GetUsersByIDs(ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	var models []UserModel
	if err := s.db.Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]UserModel, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	res := make([]domain.User, 0, len(models))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			res = append(res, userFromModel(m))
		}
	}
	return res, nil
}

// SaveRoleRequest stores or updates a role request.
func (s *GormStore) SaveRoleRequest(r domain.RoleRequest) error {
	model := RoleRequestModel{
		ID:            r.ID,
		UserID:        r.UserID,
		Message:       r.Message,
		RequestedRole: string(r.RequestedRole),
		Status:        string(r.Status),
		RequestDate:   r.RequestDate,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"message", "status"}),
	}).Create(&model).Error
}

// GetPendingRoleRequest returns the newest pending request of a user.
func (s *GormStore) GetPendingRoleRequest(userID string) (domain.RoleRequest, bool, error) {
	var model RoleRequestModel
	if err := s.db.Where("user_id = ? AND status = ?", userID, string(domain.RoleRequestPending)).
		Order("request_date DESC").
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.RoleRequest{}, false, nil
		}
		return domain.RoleRequest{}, false, err
	}
	return domain.RoleRequest{
		ID:            model.ID,
		UserID:        model.UserID,
		Message:       model.Message,
		RequestedRole: domain.UserRole(model.RequestedRole),
		Status:        domain.RoleRequestStatus(model.Status),
		RequestDate:   model.RequestDate,
	}, true, nil
}

// SaveCourse stores or updates course metadata. Chapters are written separately.
func (s *GormStore) SaveCourse(c domain.Course) error {
	model, err := courseToModel(c)
	if err != nil {
		return err
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "content_state", "published", "content_job_id", "generation", "updated_at"}),
	}).Create(&model).Error
}

// GetCourse returns course metadata without chapters.
func (s *GormStore) GetCourse(id string) (domain.Course, bool, error) {
	var model CourseModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Course{}, false, nil
		}
		return domain.Course{}, false, err
	}
	return courseFromModel(model), true, nil
}

// ListCoursesByCreator returns courses owned by a creator ordered by created_at.
func (s *GormStore) ListCoursesByCreator(creatorID string) ([]domain.Course, error) {
	var models []CourseModel
	if err := s.db.Where("creator_id = ?", creatorID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Course, 0, len(models))
	for _, m := range models {
		res = append(res, courseFromModel(m))
	}
	return res, nil
}

// ListCoursesByIDs returns the courses that exist, in the order of ids.
func (s *GormStore) ListCoursesByIDs(ids []string) ([]domain.Course, error) {
	if len(ids) == 0 {
		return []domain.Course{}, nil
	}
	var models []CourseModel
	if err := s.db.Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]CourseModel, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	res := make([]domain.Course, 0, len(models))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			res = append(res, courseFromModel(m))
		}
	}
	return res, nil
}

// UpdateCourseMeta updates name and description only.
func (s *GormStore) UpdateCourseMeta(courseID, name, description string) error {
	return s.db.Model(&CourseModel{}).
		Where("id = ?", courseID).
		Updates(map[string]any{
			"name":        name,
			"description": description,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// SetContentJob records the content job generating the course.
func (s *GormStore) SetContentJob(courseID, jobID string) error {
	return s.db.Model(&CourseModel{}).
		Where("id = ?", courseID).
		Update("content_job_id", jobID).Error
}

// SetContentState updates the content-loading state of a course.
func (s *GormStore) SetContentState(courseID string, state domain.ContentState) error {
	return s.db.Model(&CourseModel{}).
		Where("id = ?", courseID).
		Updates(map[string]any{
			"content_state": string(state),
			"updated_at":    time.Now().UTC(),
		}).Error
}

// SetPublished updates the published flag of a course.
func (s *GormStore) SetPublished(courseID string, published bool) error {
	return s.db.Model(&CourseModel{}).
		Where("id = ?", courseID).
		Updates(map[string]any{
			"published":  published,
			"updated_at": time.Now().UTC(),
		}).Error
}

// UpsertChapters writes each chapter by number: title/text are updated in place
// and its quizzes/choices are replaced. Chapters not listed are left untouched.
func (s *GormStore) UpsertChapters(courseID string, chapters []domain.Chapter) error {
	if len(chapters) == 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&CourseModel{}).Where("id = ?", courseID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return nil
		}
		for _, ch := range chapters {
			model := ChapterModel{
				CourseID: courseID,
				Number:   ch.Chapter,
				Title:    ch.Title,
				Text:     ch.Text,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "course_id"}, {Name: "number"}},
				DoUpdates: clause.AssignmentColumns([]string{"title", "text"}),
			}).Create(&model).Error; err != nil {
				return fmt.Errorf("upsert chapter %d: %w", ch.Chapter, err)
			}
			var stored ChapterModel
			if err := tx.Where("course_id = ? AND number = ?", courseID, ch.Chapter).First(&stored).Error; err != nil {
				return fmt.Errorf("load chapter %d: %w", ch.Chapter, err)
			}
			quizIDs := tx.Model(&QuizModel{}).Select("id").Where("chapter_id = ?", stored.ID)
			if err := tx.Where("quiz_id IN (?)", quizIDs).Delete(&ChoiceModel{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&QuizModel{}, "chapter_id = ?", stored.ID).Error; err != nil {
				return err
			}
			for _, quiz := range domain.AssignQuizPositions(ch.Quiz) {
				quizModel := QuizModel{
					ChapterID:     stored.ID,
					Position:      quiz.Position,
					Question:      quiz.Question,
					CorrectAnswer: quiz.CorrectAnswer,
				}
				if err := tx.Create(&quizModel).Error; err != nil {
					return fmt.Errorf("insert quiz: %w", err)
				}
				choices := domain.UniqueChoices(quiz.Choices)
				if len(choices) == 0 {
					continue
				}
				choiceModels := make([]ChoiceModel, 0, len(choices))
				for _, c := range choices {
					choiceModels = append(choiceModels, ChoiceModel{QuizID: quizModel.ID, Letter: c.Letter, Answer: c.Answer})
				}
				if err := tx.CreateInBatches(&choiceModels, 200).Error; err != nil {
					return fmt.Errorf("insert choices: %w", err)
				}
			}
		}
		return tx.Model(&CourseModel{}).Where("id = ?", courseID).Update("updated_at", time.Now().UTC()).Error
	})
}

// ListChapters returns the nested content tree of a course, ordered.
func (s *GormStore) ListChapters(courseID string) ([]domain.Chapter, error) {
	var chapterModels []ChapterModel
	if err := s.db.Where("course_id = ?", courseID).Order("number ASC").Find(&chapterModels).Error; err != nil {
		return nil, err
	}
	if len(chapterModels) == 0 {
		return []domain.Chapter{}, nil
	}
	chapterIDs := make([]uint, 0, len(chapterModels))
	for _, m := range chapterModels {
		chapterIDs = append(chapterIDs, m.ID)
	}
	var quizModels []QuizModel
	if err := s.db.Where("chapter_id IN ?", chapterIDs).Order("position ASC").Order("id ASC").Find(&quizModels).Error; err != nil {
		return nil, err
	}
	choicesByQuiz := map[uint][]domain.Choice{}
	if len(quizModels) > 0 {
		quizIDs := make([]uint, 0, len(quizModels))
		for _, q := range quizModels {
			quizIDs = append(quizIDs, q.ID)
		}
		var choiceModels []ChoiceModel
		if err := s.db.Where("quiz_id IN ?", quizIDs).Order("letter ASC").Find(&choiceModels).Error; err != nil {
			return nil, err
		}
		for _, c := range choiceModels {
			choicesByQuiz[c.QuizID] = append(choicesByQuiz[c.QuizID], domain.Choice{Letter: c.Letter, Answer: c.Answer})
		}
	}
	quizzesByChapter := map[uint][]domain.Quiz{}
	for _, q := range quizModels {
		choices := choicesByQuiz[q.ID]
		if choices == nil {
			choices = []domain.Choice{}
		}
		quizzesByChapter[q.ChapterID] = append(quizzesByChapter[q.ChapterID], domain.Quiz{
			Position:      q.Position,
			Question:      q.Question,
			CorrectAnswer: q.CorrectAnswer,
			Choices:       choices,
		})
	}
	chapters := make([]domain.Chapter, 0, len(chapterModels))
	for _, m := range chapterModels {
		quizzes := quizzesByChapter[m.ID]
		if quizzes == nil {
			quizzes = []domain.Quiz{}
		}
		chapters = append(chapters, domain.Chapter{
			Chapter: m.Number,
			Title:   m.Title,
			Text:    m.Text,
			Quiz:    quizzes,
		})
	}
	domain.SortChapters(chapters)
	return chapters, nil
}

// DeleteCourse removes a course with its chapters, quizzes, choices and circle links.
func (s *GormStore) DeleteCourse(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		chapterIDs := tx.Model(&ChapterModel{}).Select("id").Where("course_id = ?", id)
		quizIDs := tx.Model(&QuizModel{}).Select("id").Where("chapter_id IN (?)", chapterIDs)
		if err := tx.Where("quiz_id IN (?)", quizIDs).Delete(&ChoiceModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chapter_id IN (?)", chapterIDs).Delete(&QuizModel{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ChapterModel{}, "course_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&CircleCourseModel{}, "course_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&CourseModel{}, "id = ?", id).Error
	})
}

// SaveCircle stores or updates a circle.
func (s *GormStore) SaveCircle(c domain.Circle) error {
	model := CircleModel{
		ID:             c.ID,
		CreatorID:      c.CreatorID,
		Name:           c.Name,
		Description:    c.Description,
		InvitationLink: c.InvitationLink,
		CreatedAt:      c.CreatedAt,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "invitation_link"}),
	}).Create(&model).Error
}

// GetCircle retrieves a circle.
func (s *GormStore) GetCircle(id string) (domain.Circle, bool, error) {
	var model CircleModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Circle{}, false, nil
		}
		return domain.Circle{}, false, err
	}
	return circleFromModel(model), true, nil
}

// ListCirclesByMember returns circles the user belongs to ordered by created_at.
func (s *GormStore) ListCirclesByMember(userID string) ([]domain.Circle, error) {
	var models []CircleModel
	if err := s.db.Model(&CircleModel{}).
		Joins("JOIN circle_member_models m ON m.circle_id = circle_models.id").
		Where("m.user_id = ?", userID).
		Order("circle_models.created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Circle, 0, len(models))
	for _, m := range models {
		res = append(res, circleFromModel(m))
	}
	return res, nil
}

// AddMember inserts a membership. It reports false when it already existed.
func (s *GormStore) AddMember(circleID, userID string) (bool, error) {
	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&CircleMemberModel{
		CircleID: circleID,
		UserID:   userID,
		JoinedAt: time.Now().UTC(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IsMember checks whether a user belongs to a circle.
func (s *GormStore) IsMember(circleID, userID string) (bool, error) {
	var count int64
	if err := s.db.Model(&CircleMemberModel{}).
		Where("circle_id = ? AND user_id = ?", circleID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListMemberIDs returns member user ids in join order.
func (s *GormStore) ListMemberIDs(circleID string) ([]string, error) {
	var ids []string
	if err := s.db.Model(&CircleMemberModel{}).
		Where("circle_id = ?", circleID).
		Order("joined_at ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// LinkCourse links a course into a circle. It reports false when the link already existed.
func (s *GormStore) LinkCourse(circleID, courseID string) (bool, error) {
	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&CircleCourseModel{
		CircleID: circleID,
		CourseID: courseID,
		LinkedAt: time.Now().UTC(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UnlinkCourse removes a circle-course link.
func (s *GormStore) UnlinkCourse(circleID, courseID string) error {
	return s.db.Delete(&CircleCourseModel{}, "circle_id = ? AND course_id = ?", circleID, courseID).Error
}

// IsCourseLinked checks whether a course is linked into a circle.
func (s *GormStore) IsCourseLinked(circleID, courseID string) (bool, error) {
	var count int64
	if err := s.db.Model(&CircleCourseModel{}).
		Where("circle_id = ? AND course_id = ?", circleID, courseID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListCourseIDsInCircle returns linked course ids in link order.
func (s *GormStore) ListCourseIDsInCircle(circleID string) ([]string, error) {
	var ids []string
	if err := s.db.Model(&CircleCourseModel{}).
		Where("circle_id = ?", circleID).
		Order("linked_at ASC").
		Pluck("course_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		Phone:        u.Phone,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	role := domain.UserRole(m.Role)
	if role == "" {
		role = domain.RoleUser
	}
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Name:         m.Name,
		Phone:        m.Phone,
		Role:         role,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func courseToModel(c domain.Course) (CourseModel, error) {
	generation, err := json.Marshal(c.Generation)
	if err != nil {
		return CourseModel{}, fmt.Errorf("encode generation request: %w", err)
	}
	return CourseModel{
		ID:           c.ID,
		CreatorID:    c.CreatorID,
		Name:         c.Name,
		Description:  c.Description,
		ContentState: string(c.ContentState),
		Published:    c.Published,
		ContentJobID: c.ContentJobID,
		Generation:   generation,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}, nil
}

func courseFromModel(m CourseModel) domain.Course {
	var generation domain.GenerationRequest
	if len(m.Generation) > 0 {
		_ = json.Unmarshal(m.Generation, &generation)
	}
	return domain.Course{
		ID:           m.ID,
		CreatorID:    m.CreatorID,
		Name:         m.Name,
		Description:  m.Description,
		ContentState: domain.ContentState(m.ContentState),
		Published:    m.Published,
		ContentJobID: m.ContentJobID,
		Generation:   generation,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func circleFromModel(m CircleModel) domain.Circle {
	return domain.Circle{
		ID:             m.ID,
		CreatorID:      m.CreatorID,
		Name:           m.Name,
		Description:    m.Description,
		InvitationLink: m.InvitationLink,
		CreatedAt:      m.CreatedAt,
	}
}
