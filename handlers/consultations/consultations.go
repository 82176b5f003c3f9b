package consultations

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"

	"github.com/hilla1/server/handlers/auth"
	"github.com/hilla1/server/models"
	"github.com/hilla1/server/utils"
)

// randomPassword generates the initial password for accounts created on a
// client's behalf.
func randomPassword() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))[:12]
	}
	return hex.EncodeToString(buf)
}

func servicesJSON(services []string) datatypes.JSON {
	if services == nil {
		services = []string{}
	}
	data, _ := json.Marshal(services)
	return datatypes.JSON(data)
}

// CheckEmail reports whether an account exists for the email; used by the
// booking form before login.
func CheckEmail(c *gin.Context) {
	if _, ok := auth.CurrentUser(c); ok {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "User already logged in"})
		return
	}

	var input struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email is required"})
		return
	}

	var user models.User
	if err := utils.DB.Where("email = ?", input.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "User does not exist"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User exists"})
}

type createConsultationRequest struct {
	FullName    string   `json:"fullName"`
	Email       string   `json:"email"`
	PhoneNumber string   `json:"phoneNumber"`
	Services    []string `json:"services"`
	Budget      string   `json:"budget"`
	Timeline    string   `json:"timeline"`
	Description string   `json:"description"`
	TimeSlot    string   `json:"timeSlot"`
}

// CreateConsultation books a consultation. Guests get an account created on
// the fly; admins and consultants may book on behalf of a client.
func CreateConsultation(c *gin.Context) {
	var req createConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.FullName == "" || req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Full name and email are required"})
		return
	}

	slot, err := time.Parse(time.RFC3339, req.TimeSlot)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid timeSlot format provided."})
		return
	}

	loggedInUser, loggedIn := auth.CurrentUser(c)
	staff := loggedIn && (loggedInUser.Role == models.RoleAdmin || loggedInUser.Role == models.RoleConsultant)

	if loggedIn && !staff && loggedInUser.Email != req.Email {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"message": "You are not allowed to create consultations for other users",
		})
		return
	}

	creatingForSomeoneElse := staff && loggedInUser.Email != req.Email

	var targetUser models.User
	if loggedIn && !creatingForSomeoneElse {
		targetUser = loggedInUser
	} else {
		err := utils.DB.Where("email = ?", req.Email).First(&targetUser).Error
		if err != nil {
			password := randomPassword()
			hashed, hashErr := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if hashErr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create user"})
				return
			}

			targetUser = models.User{
				Name:     req.FullName,
				Email:    req.Email,
				Password: string(hashed),
				Role:     models.RoleClient,
			}
			if err := utils.DB.Create(&targetUser).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create user"})
				return
			}

			// Log the guest in on the spot.
			if !creatingForSomeoneElse {
				if token, err := utils.GenerateToken(targetUser.ID, targetUser.Role); err == nil {
					c.SetSameSite(http.SameSiteNoneMode)
					c.SetCookie("token", token, 7*24*60*60, "/", "", true, true)
				}
			}

			sendWelcomeEmail(targetUser, password)
		}
	}

	status := models.ConsultationPending
	var handlers []models.User
	if creatingForSomeoneElse {
		status = models.ConsultationScheduled
		handlers = []models.User{loggedInUser}
	}

	consultation := models.Consultation{
		UserID:      targetUser.ID,
		PhoneNumber: req.PhoneNumber,
		Services:    servicesJSON(req.Services),
		Budget:      req.Budget,
		Timeline:    req.Timeline,
		Description: req.Description,
		TimeSlot:    req.TimeSlot,
		Status:      status,
		Handlers:    handlers,
	}

	if err := utils.DB.Create(&consultation).Error; err != nil {
		log.Printf("Failed to create consultation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create consultation"})
		return
	}

	sendConfirmationEmail(targetUser, consultation, slot)
	if creatingForSomeoneElse {
		sendBookedForClientEmail(loggedInUser, targetUser, consultation, slot)
	}

	message := "Consultation created and email sent successfully."
	if creatingForSomeoneElse {
		message = "Consultation created on behalf of another user and emails sent."
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "consultationId": consultation.ID})
}

// GetConsultations lists consultations visible to the caller's role.
func GetConsultations(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	query := utils.DB.Preload("User").Preload("Handlers").Preload("RescheduleHistory")

	switch user.Role {
	case models.RoleClient:
		query = query.Where("user_id = ?", user.ID)
	case models.RoleConsultant:
		query = query.Where(
			"user_id = ? OR id IN (SELECT consultation_id FROM consultation_handlers WHERE user_id = ?)",
			user.ID, user.ID)
	case models.RoleAdmin:
		// Admin sees everything.
	default:
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Unauthorized role"})
		return
	}

	var consultations []models.Consultation
	if err := query.Order("created_at DESC").Find(&consultations).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch consultations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "consultations": consultations})
}

func loadConsultation(id string) (*models.Consultation, error) {
	var consultation models.Consultation
	err := utils.DB.Preload("User").Preload("Handlers").Preload("RescheduleHistory").
		First(&consultation, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &consultation, nil
}

func isHandler(consultation *models.Consultation, userID uint) bool {
	for _, handler := range consultation.Handlers {
		if handler.ID == userID {
			return true
		}
	}
	return false
}

// GetConsultationByID returns one consultation to its owner, a handler or
// an admin.
func GetConsultationByID(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	consultation, err := loadConsultation(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Consultation not found"})
		return
	}

	if user.Role != models.RoleAdmin && consultation.UserID != user.ID && !isHandler(consultation, user.ID) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Unauthorized access to this consultation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "consultation": consultation})
}

type updateConsultationRequest struct {
	TimeSlot    string   `json:"timeSlot"`
	Status      string   `json:"status"`
	Services    []string `json:"services"`
	PhoneNumber string   `json:"phoneNumber"`
}

// UpdateByID applies slot/status/services/phone changes and notifies the
// client and every handler with a summary of what changed.
func UpdateByID(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	var req updateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid input data"})
		return
	}

	consultation, err := loadConsultation(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Consultation not found"})
		return
	}

	isAdmin := user.Role == models.RoleAdmin
	handler := isHandler(consultation, user.ID)
	isClient := consultation.UserID == user.ID

	if !isAdmin && !handler && !isClient {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Unauthorized to update this consultation"})
		return
	}

	if isClient && !isAdmin && !handler {
		if len(consultation.Handlers) == 0 {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "You cannot reschedule a consultation unless it has a handler assigned.",
			})
			return
		}
		if consultation.Status != models.ConsultationPending {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "You can only reschedule consultations while their status is pending.",
			})
			return
		}
	}

	var newSlot time.Time
	if req.TimeSlot != "" {
		newSlot, err = time.Parse(time.RFC3339, req.TimeSlot)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid timeSlot format"})
			return
		}
	}
	if req.Status != "" && !models.ValidConsultationStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid status value"})
		return
	}

	var changes []string
	timeSlotChanged := false

	if req.TimeSlot != "" && req.TimeSlot != consultation.TimeSlot {
		consultation.RescheduleHistory = append(consultation.RescheduleHistory, models.RescheduleEntry{
			ConsultationID: consultation.ID,
			OldTimeSlot:    consultation.TimeSlot,
			ChangedAt:      time.Now(),
		})
		consultation.TimeSlot = req.TimeSlot
		timeSlotChanged = true
		changes = append(changes, "Time changed to "+newSlot.In(nairobi).Format("Monday, 2 January 2006 3:04 PM"))
	}

	if req.Status != "" && req.Status != consultation.Status {
		consultation.Status = req.Status
		changes = append(changes, fmt.Sprintf("Status changed to %q", req.Status))
	}

	if req.Services != nil {
		updated := servicesJSON(req.Services)
		if string(updated) != string(consultation.Services) {
			consultation.Services = updated
			changes = append(changes, "Services updated")
		}
	}

	if req.PhoneNumber != "" && req.PhoneNumber != consultation.PhoneNumber {
		consultation.PhoneNumber = req.PhoneNumber
		changes = append(changes, "Phone number updated to "+req.PhoneNumber)
	}

	if len(changes) == 0 {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "No changes were made."})
		return
	}

	if timeSlotChanged && req.Status == "" {
		consultation.Status = models.ConsultationRescheduled
		changes = append(changes, `Status auto-set to "rescheduled" due to time change`)
	}

	if err := utils.DB.Save(consultation).Error; err != nil {
		log.Printf("Failed to update consultation %d: %v", consultation.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update consultation"})
		return
	}

	changeSummary := ""
	for i, change := range changes {
		if i > 0 {
			changeSummary += "\n"
		}
		changeSummary += change
	}

	slot, err := time.Parse(time.RFC3339, consultation.TimeSlot)
	if err == nil {
		sendUpdateEmail(consultation.User.Email, consultation.User.Name, changeSummary, *consultation, slot)
		for _, h := range consultation.Handlers {
			sendUpdateEmail(h.Email, h.Name, changeSummary, *consultation, slot)
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Consultation updated and notifications sent."})
}

type assignHandlerRequest struct {
	Emails []string `json:"emails"`
	Action string   `json:"action"`
}

// AssignHandler adds or removes handler accounts on a consultation.
// Unknown assignees get a consultant account created and emailed.
func AssignHandler(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	var req assignHandlerRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Emails) == 0 ||
		(req.Action != "assign" && req.Action != "remove") {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Consultation ID, valid emails array, and valid action are required",
		})
		return
	}

	consultation, err := loadConsultation(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Consultation not found"})
		return
	}

	if user.Role != models.RoleAdmin && !isHandler(consultation, user.ID) {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"message": "You are not allowed to modify handlers for this consultation",
		})
		return
	}

	slot, _ := time.Parse(time.RFC3339, consultation.TimeSlot)

	var results []gin.H

	if req.Action == "remove" {
		for _, email := range req.Emails {
			var target models.User
			if err := utils.DB.Where("email = ?", email).First(&target).Error; err != nil {
				results = append(results, gin.H{"email": email, "removed": false, "reason": "User not found"})
				continue
			}
			if !isHandler(consultation, target.ID) {
				results = append(results, gin.H{"email": email, "removed": false, "reason": "User is not a handler"})
				continue
			}

			if err := utils.DB.Model(consultation).Association("Handlers").Delete(&target); err != nil {
				results = append(results, gin.H{"email": email, "removed": false, "reason": "Failed to remove handler"})
				continue
			}

			sendRemovedEmail(target, consultation.User, *consultation, slot)
			results = append(results, gin.H{"email": email, "removed": true})
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Handler(s) removed successfully", "results": results})
		return
	}

	for _, email := range req.Emails {
		alreadyHandler := false
		for _, h := range consultation.Handlers {
			if h.Email == email {
				alreadyHandler = true
				break
			}
		}
		if alreadyHandler {
			results = append(results, gin.H{"email": email, "assigned": false, "reason": "Already a handler"})
			continue
		}

		var target models.User
		if err := utils.DB.Where("email = ?", email).First(&target).Error; err != nil {
			password := randomPassword()
			hashed, hashErr := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if hashErr != nil {
				results = append(results, gin.H{"email": email, "assigned": false, "reason": "Failed to create account"})
				continue
			}

			target = models.User{
				Name:     nameFromEmail(email),
				Email:    email,
				Password: string(hashed),
				Role:     models.RoleConsultant,
			}
			if err := utils.DB.Create(&target).Error; err != nil {
				results = append(results, gin.H{"email": email, "assigned": false, "reason": "Failed to create account"})
				continue
			}

			sendMail(email, "Account Created – Tech with Brands",
				fmt.Sprintf("Hi %s,\n\nAn account has been created for you on Tech with Brands.\n\n"+
					"Login Email: %s\nPassword: %s\n\nLogin and change your password at %s\n\n"+
					"Best,\nTech with Brands Team", target.Name, email, password, siteURL))
		} else if target.Role != models.RoleConsultant && target.Role != models.RoleAdmin {
			target.Role = models.RoleConsultant
			if err := utils.DB.Save(&target).Error; err != nil {
				log.Printf("Failed to promote %s to consultant: %v", email, err)
			}
		}

		if err := utils.DB.Model(consultation).Association("Handlers").Append(&target); err != nil {
			results = append(results, gin.H{"email": email, "assigned": false, "reason": "Failed to assign handler"})
			continue
		}

		sendAssignedEmail(target, consultation.User, *consultation, slot)
		results = append(results, gin.H{"email": email, "assigned": true})
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Handler(s) processed", "results": results})
}

func nameFromEmail(email string) string {
	name := email
	for i := range email {
		if email[i] == '@' {
			name = email[:i]
			break
		}
	}
	out := []byte(name)
	for i := range out {
		if out[i] == '.' {
			out[i] = ' '
		}
	}
	return string(out)
}

// DeleteByID removes a consultation under the original role rules and
// notifies everyone involved.
func DeleteByID(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	consultation, err := loadConsultation(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Consultation not found"})
		return
	}

	isClient := consultation.UserID == user.ID
	handler := isHandler(consultation, user.ID)
	isPending := consultation.Status == models.ConsultationPending

	switch user.Role {
	case models.RoleAdmin:
		// Always allowed.
	case models.RoleConsultant:
		if !(isPending && (handler || isClient)) {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Unauthorized: Consultants can only delete pending consultations they handle or created",
			})
			return
		}
	case models.RoleClient:
		if !(isPending && isClient) {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Unauthorized: Clients can only delete their own pending consultations",
			})
			return
		}
	default:
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Unauthorized role"})
		return
	}

	client := consultation.User
	handlers := consultation.Handlers

	if err := utils.DB.Delete(consultation).Error; err != nil {
		log.Printf("Failed to delete consultation %d: %v", consultation.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to delete consultation"})
		return
	}

	sendDeletedEmails(client, handlers)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Consultation deleted and notifications sent"})
}

func RegisterConsultationRoutes(r *gin.Engine, authed *gin.RouterGroup) {
	r.POST("/consultation/check-email", auth.OptionalAuth(), CheckEmail)
	r.POST("/consultation/create-consultation", auth.OptionalAuth(), CreateConsultation)

	authed.GET("/consultation/get-consultations", GetConsultations)
	authed.GET("/consultation/get-consultations/:id", GetConsultationByID)
	authed.PATCH("/consultation/update/:id", UpdateByID)
	authed.PATCH("/consultation/assign-handler/:id", AssignHandler)
	authed.DELETE("/consultation/delete/:id", DeleteByID)
}
