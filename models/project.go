package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Project struct {
	gorm.Model
	ClientID    uint   `gorm:"not null;index" json:"client_id"`
	Client      User   `json:"client"`
	ProjectName string `gorm:"not null" json:"project_name"`
	ProjectType string `gorm:"not null" json:"project_type"`
	Description string `json:"description"`
	Timeline    string `json:"timeline"`
	Budget      string `json:"budget"`
	Priority    string `json:"priority"`
	Progress    int    `gorm:"default:0" json:"progress"`

	Features     datatypes.JSON `json:"features"`
	Integrations datatypes.JSON `json:"integrations"`

	Phases      []ProjectPhase  `json:"phases"`
	Files       []ProjectFile   `json:"files"`
	TeamMembers []ProjectMember `json:"team_members"`
}

type ProjectPhase struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ProjectID uint   `gorm:"index" json:"project_id"`
	Name      string `json:"name"`
	Status    string `gorm:"default:pending" json:"status"`
	Position  int    `json:"position"`
}

type ProjectFile struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ProjectID uint   `gorm:"index" json:"project_id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	URL       string `json:"url"`
	PublicID  string `json:"public_id"`
}

type ProjectMember struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ProjectID uint   `gorm:"index" json:"project_id"`
	UserID    uint   `gorm:"index" json:"user_id"`
	RoleName  string `json:"role_name"`
}

// DefaultPhases returns the starter phases for a project type.
func DefaultPhases(projectType string) []ProjectPhase {
	var names []string
	switch projectType {
	case "logo_design":
		names = []string{"Research & Concept", "Design Iteration", "Finalization"}
	case "branding":
		names = []string{"Brand Strategy", "Visual Identity", "Guidelines Development"}
	case "web_development":
		names = []string{"Planning & Wireframing", "Development", "Testing & Deployment"}
	case "app_development":
		names = []string{"Requirement Gathering", "Development", "Testing & Launch"}
	default:
		names = []string{"Initial Phase"}
	}

	phases := make([]ProjectPhase, 0, len(names))
	for i, name := range names {
		phases = append(phases, ProjectPhase{Name: name, Status: "pending", Position: i})
	}
	return phases
}
