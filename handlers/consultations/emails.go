package consultations

import (
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/hilla1/server/models"
	"github.com/hilla1/server/utils"
)

// Mail is swapped for a fake in tests.
var Mail utils.Mailer = utils.SMTPMailer{}

const siteURL = "https://techwithbrands.com"

var nairobi = func() *time.Location {
	loc, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		return time.FixedZone("EAT", 3*60*60)
	}
	return loc
}()

// slotTimes renders a consultation slot for email bodies in local time.
func slotTimes(slot time.Time) (date string, clock string) {
	local := slot.In(nairobi)
	return local.Format("Monday, 2 January 2006"), local.Format("3:04 PM MST")
}

// calendarLink builds a Google Calendar template URL for a 45-minute slot.
func calendarLink(title, details string, slot time.Time) string {
	start := slot.UTC()
	end := start.Add(45 * time.Minute)

	params := url.Values{}
	params.Set("action", "TEMPLATE")
	params.Set("text", title)
	params.Set("details", details)
	params.Set("location", siteURL)
	params.Set("dates", start.Format("20060102T150405Z")+"/"+end.Format("20060102T150405Z"))

	return "https://calendar.google.com/calendar/render?" + params.Encode()
}

func sendMail(to, subject, body string) {
	if err := Mail.Send(to, subject, body); err != nil {
		log.Printf("Failed to send %q email to %s: %v", subject, to, err)
	}
}

func sendWelcomeEmail(user models.User, password string) {
	sendMail(user.Email, "Welcome to Tech with Brands – Your Account Details",
		fmt.Sprintf("Hi %s,\n\nAn account has been created for you on Tech with Brands.\n\n"+
			"Login Email: %s\nPassword: %s\n\nLogin and update your password at %s\n\n"+
			"Best,\nTech with Brands Team",
			user.Name, user.Email, password, siteURL))
}

func sendConfirmationEmail(user models.User, consultation models.Consultation, slot time.Time) {
	date, clock := slotTimes(slot)
	link := calendarLink("Tech with Brands - Consultation",
		"Consultation with Tech with Brands.\n\nDescription: "+consultation.Description, slot)

	sendMail(user.Email, "Your Consultation Has Been Scheduled",
		fmt.Sprintf("Hi %s,\n\nYour consultation request has been submitted successfully.\n\n"+
			"Scheduled for: %s at %s\nLocation: Online (Tech with Brands)\n\n"+
			"You can track the progress by logging into your account at %s\n\n"+
			"Add to your calendar: %s\n\nThanks for choosing Tech with Brands!\n\n"+
			"Best,\nThe Tech with Brands Team",
			user.Name, date, clock, siteURL, link))
}

func sendBookedForClientEmail(booker, client models.User, consultation models.Consultation, slot time.Time) {
	date, clock := slotTimes(slot)
	link := calendarLink("Tech with Brands - Consultation",
		"Consultation scheduled.\n\nDescription: "+consultation.Description, slot)

	sendMail(booker.Email, "You Scheduled a Consultation for "+client.Name,
		fmt.Sprintf("Hi %s,\n\nYou have successfully scheduled a consultation on behalf of:\n\n"+
			"Client: %s (%s)\nPhone: %s\nDate: %s\nTime: %s\nDescription: %s\n\n"+
			"Add to your calendar: %s\n\nManage the consultation: %s/dashboard\n\n"+
			"Best,\nTech with Brands Team",
			booker.Name, client.Name, client.Email, consultation.PhoneNumber,
			date, clock, consultation.Description, link, siteURL))
}

func sendUpdateEmail(to, name, changeSummary string, consultation models.Consultation, slot time.Time) {
	date, clock := slotTimes(slot)
	link := calendarLink("Tech with Brands - Updated Consultation",
		"Your consultation has been updated.", slot)

	sendMail(to, "Your Consultation Has Been Updated",
		fmt.Sprintf("Hi %s,\n\nYour consultation has been updated:\n\n%s\n\n"+
			"Date: %s\nTime: %s\nPhone: %s\nAdd to Calendar: %s\n\n"+
			"Thanks,\nTech with Brands Team",
			name, changeSummary, date, clock, consultation.PhoneNumber, link))
}

func sendAssignedEmail(handler, client models.User, consultation models.Consultation, slot time.Time) {
	date, clock := slotTimes(slot)
	link := calendarLink("Tech with Brands - Consultation",
		"Consultation scheduled.\n\nDescription: "+consultation.Description, slot)

	sendMail(handler.Email, "You Have Been Assigned to a Consultation",
		fmt.Sprintf("Hi %s,\n\nYou have been assigned as a handler for the following consultation:\n\n"+
			"Client: %s (%s)\nDescription: %s\nScheduled for: %s at %s\n"+
			"Location: Online (Tech with Brands)\n\nAdd to your calendar: %s\n\n"+
			"Login to manage: %s\n\nBest,\nTech with Brands Team",
			handler.Name, client.Name, client.Email, consultation.Description,
			date, clock, link, siteURL))
}

func sendRemovedEmail(handler, client models.User, consultation models.Consultation, slot time.Time) {
	date, clock := slotTimes(slot)

	sendMail(handler.Email, "Removed from Consultation – Tech with Brands",
		fmt.Sprintf("Hi %s,\n\nYou have been removed as a handler from the following consultation:\n\n"+
			"Client: %s\nDescription: %s\nScheduled for: %s at %s\n\n"+
			"This change was made by another authorized user.\n\nLogin for details: %s\n\n"+
			"Best,\nTech with Brands Team",
			handler.Name, client.Name, consultation.Description, date, clock, siteURL))
}

func sendDeletedEmails(client models.User, handlers []models.User) {
	sendMail(client.Email, "Consultation Cancelled",
		fmt.Sprintf("Hi %s,\n\nYour consultation has been deleted successfully.\n\n"+
			"If this was a mistake, please reach out to our support.\n\n"+
			"Thank you,\nTech with Brands Team", client.Name))

	for _, handler := range handlers {
		sendMail(handler.Email, "Consultation Assignment Cancelled",
			fmt.Sprintf("Hi %s,\n\nThe consultation assigned to you (with %s) has been deleted.\n\n"+
				"Please check your dashboard for updates.\n\nThanks,\nTech with Brands Team",
				handler.Name, client.Name))
	}
}
