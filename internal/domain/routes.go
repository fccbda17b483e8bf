package domain

import "net/url"

const HomeRoute = "/"

// FeedbackRoute is the view of one feedback record of an interview.
func FeedbackRoute(interviewID InterviewID, feedbackID FeedbackID) string {
	return "/interview/" + url.PathEscape(string(interviewID)) +
		"/feedback/" + url.PathEscape(string(feedbackID))
}
