package projects

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/hilla1/server/handlers/auth"
	"github.com/hilla1/server/models"
	"github.com/hilla1/server/utils"
)

func listJSON(items []string) datatypes.JSON {
	if items == nil {
		items = []string{}
	}
	data, _ := json.Marshal(items)
	return datatypes.JSON(data)
}

type createProjectRequest struct {
	ProjectName  string   `json:"projectName"`
	ProjectType  string   `json:"projectType"`
	Description  string   `json:"description"`
	Timeline     string   `json:"timeline"`
	Budget       string   `json:"budget"`
	Priority     string   `json:"priority"`
	Features     []string `json:"features"`
	Integrations []string `json:"integrations"`
}

// CreateProject starts a project for the caller with the default phases
// for its type.
func CreateProject(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProjectName == "" || req.ProjectType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Project name and type are required"})
		return
	}

	project := models.Project{
		ClientID:     user.ID,
		ProjectName:  req.ProjectName,
		ProjectType:  req.ProjectType,
		Description:  req.Description,
		Timeline:     req.Timeline,
		Budget:       req.Budget,
		Priority:     req.Priority,
		Features:     listJSON(req.Features),
		Integrations: listJSON(req.Integrations),
		Phases:       models.DefaultPhases(req.ProjectType),
	}

	if err := utils.DB.Create(&project).Error; err != nil {
		log.Printf("Failed to create project: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create project"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Project created successfully", "project": project})
}

func isTeamMember(project *models.Project, userID uint) bool {
	for _, member := range project.TeamMembers {
		if member.UserID == userID {
			return true
		}
	}
	return false
}

func loadProject(id string) (*models.Project, error) {
	var project models.Project
	err := utils.DB.Preload("Client").Preload("Phases").Preload("Files").Preload("TeamMembers").
		First(&project, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetProjects lists the projects visible to the caller: admins see all,
// everyone else sees projects they own or are a team member of.
func GetProjects(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	query := utils.DB.Preload("Client").Preload("Phases").Preload("Files").Preload("TeamMembers")
	if user.Role != models.RoleAdmin {
		query = query.Where(
			"client_id = ? OR id IN (SELECT project_id FROM project_members WHERE user_id = ?)",
			user.ID, user.ID)
	}

	var projects []models.Project
	if err := query.Order("created_at DESC").Find(&projects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch projects"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "projects": projects})
}

func GetProjectByID(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	project, err := loadProject(c.Param("projectId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Project not found"})
		return
	}

	if user.Role != models.RoleAdmin && project.ClientID != user.ID && !isTeamMember(project, user.ID) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Unauthorized access to this project"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "project": project})
}

type updateProjectRequest struct {
	ProjectName  *string  `json:"projectName"`
	Description  *string  `json:"description"`
	Timeline     *string  `json:"timeline"`
	Budget       *string  `json:"budget"`
	Priority     *string  `json:"priority"`
	Progress     *int     `json:"progress"`
	Features     []string `json:"features"`
	Integrations []string `json:"integrations"`
}

// UpdateProject applies partial updates. Only the owner, a team member or
// an admin may update, and progress is clamped to 0..100.
func UpdateProject(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	project, err := loadProject(c.Param("projectId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Project not found"})
		return
	}

	if user.Role != models.RoleAdmin && project.ClientID != user.ID && !isTeamMember(project, user.ID) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Unauthorized to update this project"})
		return
	}

	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid input data"})
		return
	}

	if req.ProjectName != nil {
		project.ProjectName = *req.ProjectName
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Timeline != nil {
		project.Timeline = *req.Timeline
	}
	if req.Budget != nil {
		project.Budget = *req.Budget
	}
	if req.Priority != nil {
		project.Priority = *req.Priority
	}
	if req.Progress != nil {
		progress := *req.Progress
		if progress < 0 {
			progress = 0
		}
		if progress > 100 {
			progress = 100
		}
		project.Progress = progress
	}
	if req.Features != nil {
		project.Features = listJSON(req.Features)
	}
	if req.Integrations != nil {
		project.Integrations = listJSON(req.Integrations)
	}

	if err := utils.DB.Save(project).Error; err != nil {
		log.Printf("Failed to update project %d: %v", project.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update project"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Project updated successfully", "project": project})
}

// DeleteProject removes a project. Only the owner or an admin may delete.
func DeleteProject(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	project, err := loadProject(c.Param("projectId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Project not found"})
		return
	}

	if user.Role != models.RoleAdmin && project.ClientID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Unauthorized to delete this project"})
		return
	}

	if err := utils.DB.Delete(project).Error; err != nil {
		log.Printf("Failed to delete project %d: %v", project.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to delete project"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Project deleted successfully"})
}

func RegisterProjectRoutes(authed *gin.RouterGroup) {
	authed.POST("/project/create", CreateProject)
	authed.GET("/project", GetProjects)
	authed.GET("/project/:projectId", GetProjectByID)
	authed.PATCH("/project/update/:projectId", UpdateProject)
	authed.DELETE("/project/:projectId", DeleteProject)
}
