package kantata

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Selectors for the Kantata (Salesforce Visualforce) expense pages. The j_id
// values are generated by Visualforce and change when the page is republished.
const (
	loggedInSelector      = ".slds-context-bar, .oneHeader"
	claimFrameSelector    = `iframe[name^="vfFrameId_"]`
	claimNameSelector     = `input[name*="expenseClaimName"]`
	incurredDateSelector  = `input[id*="incurredDateField"]`
	actionButtonsSelector = "#action-buttons span"
	categorySelector      = `select[id*="expenseCategorySelect"]`
	currencySelector      = `select[name*="incurredAmountCurrencyField"]`
	amountSelector        = `input[name*="incurredAmountField"]`
	itemDateSelector      = `input[id*="j_id219"]`
	descriptionSelector   = `textarea[name*="descriptionField"]`
	saveDropdownSelector  = ".dd-btn.toolbar-button"
	saveButtonSelector    = `input[id*="TheForm:j_id137"]`
	fileInputSelector     = `input[type="file"]`
	uploadSubmitSelector  = `input[type="submit"][value="Upload"]`
	uploadFrameName       = "fileUploadIFrame"
	uploadFrameURLPart    = "FileUpload"

	// proceedButtonIndex is the "Next" span among the claim header buttons
	proceedButtonIndex = 2
	// addExpenseIndex skips the hidden template copy of the link
	addExpenseIndex = 1
)

// dateLayout is the dd/mm/yyyy format the Kantata date pickers accept
const dateLayout = "02/01/2006"

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func receiptCheckboxSelector(row int) string {
	return fmt.Sprintf(`input[id*="TheExpenseItems:%d:"][id*="j_id331"]`, row)
}

func uploadButtonSelector(row int) string {
	return fmt.Sprintf(`a[onclick*="showFileUploadPopup('%d')"]`, row)
}
