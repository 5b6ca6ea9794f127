package bugzilla

// SearchResponse is the top-level container of GET /rest/bug.
type SearchResponse struct {
	Bugs []BugDTO `json:"bugs"`
}

// BugDTO represents a single bug in the search response.
type BugDTO struct {
	ID         int       `json:"id"`
	Summary    string    `json:"summary"`
	AssignedTo string    `json:"assigned_to"`
	Component  string    `json:"component"`
	Status     string    `json:"status"`
	Priority   string    `json:"priority"`
	Whiteboard string    `json:"whiteboard"`
	Flags      []FlagDTO `json:"flags"`
}

// FlagDTO is a flag as sent by Bugzilla. Name stays nil if the attribute is absent.
type FlagDTO struct {
	ID        int     `json:"id"`
	TypeID    int     `json:"type_id"`
	Name      *string `json:"name"`
	Status    string  `json:"status"`
	Setter    string  `json:"setter"`
	Requestee string  `json:"requestee"`
}

// WhoAmIResponse is returned by GET /rest/whoami for an authenticated caller.
type WhoAmIResponse struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
}

// LoginResponse is returned by GET /rest/login.
type LoginResponse struct {
	ID    int    `json:"id"`
	Token string `json:"token"`
}

// ErrorEnvelope is the body Bugzilla sends alongside a fault.
type ErrorEnvelope struct {
	Error         bool   `json:"error"`
	Code          int    `json:"code"`
	Message       string `json:"message"`
	Documentation string `json:"documentation,omitempty"`
}

// includeFields limits the search payload to what MapBug reads.
const includeFields = "id,summary,assigned_to,component,status,priority,whiteboard,flags"

// MapBug converts a search result into a Record.
func MapBug(dto BugDTO) Record {
	r := Record{
		ID:         dto.ID,
		Summary:    dto.Summary,
		Assignee:   dto.AssignedTo,
		Component:  dto.Component,
		Status:     dto.Status,
		Priority:   dto.Priority,
		Whiteboard: dto.Whiteboard,
		Flags:      make([]Flag, 0, len(dto.Flags)),
	}
	for _, f := range dto.Flags {
		r.Flags = append(r.Flags, Flag{
			Name:      f.Name,
			Status:    f.Status,
			Setter:    f.Setter,
			Requestee: f.Requestee,
		})
	}
	return r
}
