package service

import (
	"fmt"
	"strings"

	"bizzytrack/backend/internal/domain"
)

func normalizeBusiness(business domain.Business) domain.Business {
	business.Name = strings.TrimSpace(business.Name)
	business.Currency = strings.ToUpper(strings.TrimSpace(business.Currency))
	business.Timezone = strings.TrimSpace(business.Timezone)
	return business
}

func normalizeStaff(staff domain.StaffProfile) domain.StaffProfile {
	staff.Name = strings.TrimSpace(staff.Name)
	staff.Email = strings.TrimSpace(staff.Email)
	staff.Phone = strings.TrimSpace(staff.Phone)
	staff.JobTitle = strings.TrimSpace(staff.JobTitle)
	staff.DepartmentID = strings.TrimSpace(staff.DepartmentID)
	return staff
}

func normalizeDepartment(department domain.Department) domain.Department {
	department.Name = strings.TrimSpace(department.Name)
	department.Description = strings.TrimSpace(department.Description)
	department.ManagerID = strings.TrimSpace(department.ManagerID)
	department.MemberIDs = trimmedIDs(department.MemberIDs)
	return department
}

func normalizeCustomer(customer domain.Customer) domain.Customer {
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Email = strings.TrimSpace(customer.Email)
	customer.Phone = strings.TrimSpace(customer.Phone)
	customer.Address = strings.TrimSpace(customer.Address)
	customer.Notes = strings.TrimSpace(customer.Notes)
	return customer
}

func normalizeJob(job domain.Job) domain.Job {
	job.CustomerID = strings.TrimSpace(job.CustomerID)
	job.Title = strings.TrimSpace(job.Title)
	job.Description = strings.TrimSpace(job.Description)
	job.DepartmentID = strings.TrimSpace(job.DepartmentID)
	job.AssigneeIDs = trimmedIDs(job.AssigneeIDs)
	job.Status = strings.TrimSpace(job.Status)
	job.DueDate = strings.TrimSpace(job.DueDate)
	return job
}

func normalizeItem(item domain.InventoryItem) domain.InventoryItem {
	item.SKU = strings.ToUpper(strings.TrimSpace(item.SKU))
	item.Name = strings.TrimSpace(item.Name)
	item.Category = strings.ToLower(strings.TrimSpace(item.Category))
	return item
}

func normalizeRule(rule domain.PricingRule) domain.PricingRule {
	rule.Name = strings.TrimSpace(rule.Name)
	categories := make([]string, 0, len(rule.Conditions.Categories))
	for _, category := range rule.Conditions.Categories {
		categories = append(categories, strings.ToLower(strings.TrimSpace(category)))
	}
	rule.Conditions.Categories = categories
	rule.Conditions.ItemIDs = trimmedIDs(rule.Conditions.ItemIDs)
	return rule
}

func normalizeInvoice(invoice domain.Invoice) domain.Invoice {
	invoice.CustomerID = strings.TrimSpace(invoice.CustomerID)
	invoice.JobID = strings.TrimSpace(invoice.JobID)
	invoice.Notes = strings.TrimSpace(invoice.Notes)
	invoice.DueDate = strings.TrimSpace(invoice.DueDate)
	lines := make([]domain.InvoiceLine, 0, len(invoice.Lines))
	for _, line := range invoice.Lines {
		line.Description = strings.TrimSpace(line.Description)
		lines = append(lines, line)
	}
	invoice.Lines = lines
	return invoice
}

func trimmedIDs(ids []string) []string {
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		result = append(result, strings.TrimSpace(id))
	}
	return result
}

// validateDateRange accepts open-ended ranges.
func validateDateRange(from, to string) error {
	result := &domain.ValidationError{}
	if from != "" {
		if _, err := domain.ValidateDate(from); err != nil {
			result.Add("from", "must be a date formatted YYYY-MM-DD")
		}
	}
	if to != "" {
		if _, err := domain.ValidateDate(to); err != nil {
			result.Add("to", "must be a date formatted YYYY-MM-DD")
		}
	}
	if len(result.Fields) == 0 && from != "" && to != "" && to < from {
		result.Add("to", "must not be before from")
	}
	return result.Err()
}

func lineField(idx int, field string) string {
	return fmt.Sprintf("lines[%d].%s", idx, field)
}

func indexedField(field string, idx int) string {
	return fmt.Sprintf("%s[%d]", field, idx)
}
