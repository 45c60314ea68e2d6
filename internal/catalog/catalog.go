// Package catalog loads the course and free-lesson offerings from YAML.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Catalog struct {
	courses     []domain.Course
	coursesByID map[int64]domain.Course
	lessons     map[string]domain.Lesson
	lessonsByID map[int64]string
}

type coursesFile struct {
	Courses []domain.Course `yaml:"courses"`
}

type lessonsFile struct {
	Lessons map[string]domain.Lesson `yaml:"lessons"`
}

func Load(coursesPath, lessonsPath string, log logrus.FieldLogger) (*Catalog, error) {
	courses, err := os.ReadFile(coursesPath)
	if err != nil {
		return nil, fmt.Errorf("read courses: %w", err)
	}
	var lessons []byte
	if lessonsPath != "" {
		lessons, err = os.ReadFile(lessonsPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read lessons: %w", err)
		}
	}
	return Parse(courses, lessons, log)
}

func Parse(coursesYAML, lessonsYAML []byte, log logrus.FieldLogger) (*Catalog, error) {
	var cf coursesFile
	if err := yaml.Unmarshal(coursesYAML, &cf); err != nil {
		return nil, fmt.Errorf("parse courses: %w", err)
	}
	var lf lessonsFile
	if len(lessonsYAML) > 0 {
		if err := yaml.Unmarshal(lessonsYAML, &lf); err != nil {
			return nil, fmt.Errorf("parse lessons: %w", err)
		}
	}

	c := &Catalog{
		coursesByID: make(map[int64]domain.Course, len(cf.Courses)),
		lessons:     make(map[string]domain.Lesson, len(lf.Lessons)),
		lessonsByID: make(map[int64]string, len(lf.Lessons)),
	}

	for i := range cf.Courses {
		course, err := normalizeCourse(cf.Courses[i], log)
		if err != nil {
			return nil, err
		}
		if _, dup := c.coursesByID[course.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate course id %d", domain.ErrValidation, course.ID)
		}
		c.courses = append(c.courses, course)
		c.coursesByID[course.ID] = course
	}

	for lessonType, lesson := range lf.Lessons {
		lesson.LessonType = lessonType
		if lesson.ID <= 0 {
			return nil, fmt.Errorf("%w: lesson %q must have a positive id", domain.ErrValidation, lessonType)
		}
		if other, dup := c.lessonsByID[lesson.ID]; dup {
			return nil, fmt.Errorf("%w: lessons %q and %q share id %d", domain.ErrValidation, other, lessonType, lesson.ID)
		}
		if strings.TrimSpace(lesson.ButtonText) == "" {
			lesson.ButtonText = lesson.Title
		}
		c.lessons[lessonType] = lesson
		c.lessonsByID[lesson.ID] = lessonType
	}
	return c, nil
}

func normalizeCourse(course domain.Course, log logrus.FieldLogger) (domain.Course, error) {
	if course.ID <= 0 {
		return course, fmt.Errorf("%w: course id must be positive, got %d", domain.ErrValidation, course.ID)
	}
	for field, value := range map[string]string{
		"name":        course.Name,
		"button_text": course.ButtonText,
		"description": course.Description,
	} {
		if strings.TrimSpace(value) == "" {
			return course, fmt.Errorf("%w: course %d: field %s cannot be empty", domain.ErrValidation, course.ID, field)
		}
	}
	if course.PriceUSD < 0 {
		return course, fmt.Errorf("%w: course %d: price cannot be negative", domain.ErrValidation, course.ID)
	}

	expected := course.PriceUSD * 100
	if course.PriceUSDCents != expected {
		if course.PriceUSDCents != 0 && log != nil {
			log.WithFields(logrus.Fields{
				"course_id": course.ID,
				"cents":     course.PriceUSDCents,
				"expected":  expected,
			}).Warn("course price in cents disagrees with price_usd, using price_usd")
		}
		course.PriceUSDCents = expected
	}
	if course.StartDateText == "" {
		course.StartDateText = "TBD"
	}
	return course, nil
}

func (c *Catalog) Courses() []domain.Course {
	return append([]domain.Course(nil), c.courses...)
}

func (c *Catalog) ActiveCourses() []domain.Course {
	var active []domain.Course
	for _, course := range c.courses {
		if course.Active() {
			active = append(active, course)
		}
	}
	return active
}

func (c *Catalog) Course(id int64) (domain.Course, error) {
	course, ok := c.coursesByID[id]
	if !ok {
		return domain.Course{}, fmt.Errorf("course %d: %w", id, domain.ErrNotFound)
	}
	return course, nil
}

// CourseName falls back to a placeholder for ids no longer in the catalog.
func (c *Catalog) CourseName(id int64) string {
	if course, ok := c.coursesByID[id]; ok {
		return course.Name
	}
	return "Неизвестный курс"
}

// Lessons are ordered by id.
func (c *Catalog) Lessons() []domain.Lesson {
	out := make([]domain.Lesson, 0, len(c.lessons))
	for _, l := range c.lessons {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) ActiveLessons() []domain.Lesson {
	var active []domain.Lesson
	for _, l := range c.Lessons() {
		if l.IsActive {
			active = append(active, l)
		}
	}
	return active
}

func (c *Catalog) Lesson(lessonType string) (domain.Lesson, error) {
	l, ok := c.lessons[lessonType]
	if !ok {
		return domain.Lesson{}, fmt.Errorf("lesson %q: %w", lessonType, domain.ErrNotFound)
	}
	return l, nil
}

func (c *Catalog) LessonByID(id int64) (domain.Lesson, error) {
	lessonType, ok := c.lessonsByID[id]
	if !ok {
		return domain.Lesson{}, fmt.Errorf("lesson %d: %w", id, domain.ErrNotFound)
	}
	return c.lessons[lessonType], nil
}
