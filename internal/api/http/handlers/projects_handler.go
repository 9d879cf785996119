package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/escalation-service/internal/api/dto"
	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/repository"
	apperrors "github.com/spec-kit/escalation-service/pkg/util"
)

// ProjectsHandler serves read-only project configuration for operators.
type ProjectsHandler struct {
	projects repository.ProjectRepository
	groups   repository.GroupRepository
}

// NewProjectsHandler constructs handler.
func NewProjectsHandler(projects repository.ProjectRepository, groups repository.GroupRepository) *ProjectsHandler {
	return &ProjectsHandler{projects: projects, groups: groups}
}

// List GET /projects.
func (h *ProjectsHandler) List(c *fiber.Ctx) error {
	projects, err := h.projects.List(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.ProjectSummary, 0, len(projects))
	for i := range projects {
		items = append(items, projectSummary(&projects[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /projects/:id. The escalation ladder is returned with group names
// resolved, in level order.
func (h *ProjectsHandler) Get(c *fiber.Ctx) error {
	project, err := h.projects.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperrors.MapError(err)
	}
	groups, err := h.groups.GetByIDs(c.UserContext(), project.NotificationGroupIDs)
	if err != nil {
		return err
	}

	ladder := make([]dto.EscalationLevel, 0, len(project.NotificationGroupIDs))
	for level, groupID := range project.NotificationGroupIDs {
		entry := dto.EscalationLevel{Level: level, GroupID: groupID}
		if group, ok := groups[groupID]; ok {
			entry.GroupName = group.Name
			entry.RepeatIntervalMinutes = int(group.RepeatInterval)
		}
		ladder = append(ladder, entry)
	}

	return c.JSON(fiber.Map{"data": dto.ProjectDetailResponse{
		ProjectSummary: projectSummary(project),
		Description:    project.Description,
		Ladder:         ladder,
	}})
}

func projectSummary(project *domain.Project) dto.ProjectSummary {
	return dto.ProjectSummary{
		ID:                project.ID,
		NamespaceID:       project.NamespaceID,
		Name:              project.Name,
		IsActive:          project.IsActive,
		NotifyOnAck:       project.NotifyOnAck,
		EscalationEnabled: project.Escalation.Enabled,
		TimeoutMinutes:    project.Escalation.TimeoutMinutes,
		SilencedUntil:     project.SilencedUntil,
		Levels:            len(project.NotificationGroupIDs),
	}
}
