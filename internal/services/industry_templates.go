package services

import (
	"strings"

	"craftcrm/internal/models"
)

// templateForPrompt 按关键词匹配行业模板，默认销售管道。
func templateForPrompt(prompt string) *CRMConfig {
	p := strings.ToLower(prompt)
	switch {
	case strings.Contains(p, "real estate") || strings.Contains(p, "property") || strings.Contains(p, "realtor"):
		return realEstateTemplate()
	case strings.Contains(p, "recruit") || strings.Contains(p, "hiring") || strings.Contains(p, "candidate") || strings.Contains(p, "talent"):
		return recruitmentTemplate()
	default:
		return salesTemplate()
	}
}

func salesTemplate() *CRMConfig {
	return &CRMConfig{
		WorkspaceName: "Sales CRM",
		Industry:      "sales",
		Entities: []EntityTemplate{
			{
				EntityName:          "leads",
				DisplayName:         "Leads",
				DisplayNameSingular: "Lead",
				Icon:                "UserPlusIcon",
				Fields: models.FieldList{
					{Name: "name", DisplayName: "Name", Type: "text", Required: true},
					{Name: "email", DisplayName: "Email", Type: "email"},
					{Name: "phone", DisplayName: "Phone", Type: "phone"},
					{Name: "company", DisplayName: "Company", Type: "text"},
					{Name: "status", DisplayName: "Status", Type: "select", Required: true,
						Options: []string{"new", "contacted", "qualified", "lost"}},
					{Name: "source", DisplayName: "Source", Type: "select",
						Options: []string{"website", "referral", "cold_call", "event"}},
				},
			},
			{
				EntityName:          "deals",
				DisplayName:         "Deals",
				DisplayNameSingular: "Deal",
				Icon:                "CurrencyDollarIcon",
				Fields: models.FieldList{
					{Name: "name", DisplayName: "Deal Name", Type: "text", Required: true},
					{Name: "value", DisplayName: "Value", Type: "currency"},
					{Name: "status", DisplayName: "Stage", Type: "select", Required: true,
						Options: []string{"prospecting", "proposal", "negotiation", "won", "lost"}},
					{Name: "close_date", DisplayName: "Expected Close", Type: "date"},
					{Name: "notes", DisplayName: "Notes", Type: "textarea"},
				},
			},
		},
		Automations: []AutomationTemplate{
			{
				EntityName:  "leads",
				Name:        "Welcome new lead",
				TriggerType: TriggerRecordCreated,
				ActionType:  ActionCreateTask,
				ActionConfig: models.ActionConfig{
					Title:       "Follow up with {{name}}",
					Description: "New lead from {{source}}",
				},
			},
			{
				EntityName:    "deals",
				Name:          "Deal won notification",
				TriggerType:   TriggerStatusChanged,
				TriggerConfig: models.TriggerConfig{ToStatus: "won"},
				ActionType:    ActionSendEmail,
				ActionConfig: models.ActionConfig{
					Subject: "Deal won: {{name}}",
					Body:    "Deal {{name}} closed at {{value}}",
				},
			},
		},
	}
}

func realEstateTemplate() *CRMConfig {
	return &CRMConfig{
		WorkspaceName: "Real Estate CRM",
		Industry:      "real_estate",
		Entities: []EntityTemplate{
			{
				EntityName:          "properties",
				DisplayName:         "Properties",
				DisplayNameSingular: "Property",
				Icon:                "HomeIcon",
				Fields: models.FieldList{
					{Name: "address", DisplayName: "Address", Type: "text", Required: true},
					{Name: "price", DisplayName: "Price", Type: "currency", Required: true},
					{Name: "bedrooms", DisplayName: "Bedrooms", Type: "number"},
					{Name: "status", DisplayName: "Status", Type: "select", Required: true,
						Options: []string{"listed", "under_offer", "sold", "withdrawn"}},
					{Name: "listing_url", DisplayName: "Listing URL", Type: "url"},
				},
			},
			{
				EntityName:          "buyers",
				DisplayName:         "Buyers",
				DisplayNameSingular: "Buyer",
				Icon:                "UsersIcon",
				Fields: models.FieldList{
					{Name: "name", DisplayName: "Name", Type: "text", Required: true},
					{Name: "email", DisplayName: "Email", Type: "email"},
					{Name: "budget", DisplayName: "Budget", Type: "currency"},
					{Name: "status", DisplayName: "Status", Type: "select", Required: true,
						Options: []string{"searching", "viewing", "offer_made", "closed"}},
				},
			},
		},
		Automations: []AutomationTemplate{
			{
				EntityName:    "properties",
				Name:          "Property sold",
				TriggerType:   TriggerStatusChanged,
				TriggerConfig: models.TriggerConfig{ToStatus: "sold"},
				ActionType:    ActionCreateTask,
				ActionConfig: models.ActionConfig{
					Title:       "Close out paperwork for {{address}}",
					Description: "Sold at {{price}}",
				},
			},
		},
	}
}

func recruitmentTemplate() *CRMConfig {
	return &CRMConfig{
		WorkspaceName: "Recruitment CRM",
		Industry:      "recruitment",
		Entities: []EntityTemplate{
			{
				EntityName:          "candidates",
				DisplayName:         "Candidates",
				DisplayNameSingular: "Candidate",
				Icon:                "UserIcon",
				Fields: models.FieldList{
					{Name: "name", DisplayName: "Name", Type: "text", Required: true},
					{Name: "email", DisplayName: "Email", Type: "email", Required: true},
					{Name: "role", DisplayName: "Role", Type: "text"},
					{Name: "status", DisplayName: "Stage", Type: "select", Required: true,
						Options: []string{"applied", "screening", "interview", "offer", "hired", "rejected"}},
					{Name: "skills", DisplayName: "Skills", Type: "multiselect",
						Options: []string{"go", "python", "typescript", "sql", "devops"}},
					{Name: "resume_url", DisplayName: "Resume", Type: "url"},
				},
			},
			{
				EntityName:          "positions",
				DisplayName:         "Positions",
				DisplayNameSingular: "Position",
				Icon:                "BriefcaseIcon",
				Fields: models.FieldList{
					{Name: "title", DisplayName: "Title", Type: "text", Required: true},
					{Name: "department", DisplayName: "Department", Type: "text"},
					{Name: "status", DisplayName: "Status", Type: "select", Required: true,
						Options: []string{"open", "on_hold", "filled"}},
					{Name: "headcount", DisplayName: "Headcount", Type: "number"},
				},
			},
		},
		Automations: []AutomationTemplate{
			{
				EntityName:    "candidates",
				Name:          "Offer stage reached",
				TriggerType:   TriggerStatusChanged,
				TriggerConfig: models.TriggerConfig{ToStatus: "offer"},
				ActionType:    ActionSendEmail,
				ActionConfig: models.ActionConfig{
					Subject: "Offer prepared for {{name}}",
					Body:    "Candidate {{name}} for {{role}} reached offer stage",
				},
			},
			{
				EntityName:  "candidates",
				Name:        "Screen new applicant",
				TriggerType: TriggerRecordCreated,
				ActionType:  ActionCreateTask,
				ActionConfig: models.ActionConfig{
					Title: "Screen {{name}}",
				},
			},
		},
	}
}
