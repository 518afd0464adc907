package query

// MessageField is the form field posted by the chat page.
const MessageField = "msg"

type ResponseBody struct {
	UserQuery string
	Answer    string
	Sources   []string
}

type HealthBody struct {
	Status string `json:"status"`
}
