package domain

// AdAccount is an ad-platform account the insights source can read.
type AdAccount struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Status   string   `json:"status"`
	Currency Currency `json:"currency"`
}

var accountStatusNames = map[int]string{
	1:   "ACTIVE",
	2:   "DISABLED",
	3:   "UNSETTLED",
	7:   "PENDING_RISK_REVIEW",
	8:   "PENDING_SETTLEMENT",
	9:   "IN_GRACE_PERIOD",
	100: "PENDING_CLOSURE",
	101: "CLOSED",
}

// AccountStatusName maps the Graph API numeric account_status to its name.
func AccountStatusName(code int) string {
	if name, ok := accountStatusNames[code]; ok {
		return name
	}
	return "UNKNOWN"
}
