package discovery

import (
	"github.com/joseph-ayodele/contracts-analyzer/constants"
	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
)

// DefaultContractFields is the static field set for credit and loan contracts, used when
// discovery fails or the caller opts out of it.
func DefaultContractFields() []entity.FieldSpec {
	return []entity.FieldSpec{
		{Key: "lender_name", Question: "What is the name of the bank or lender issuing this contract?", Type: constants.FieldCategory},
		{Key: "principal_amount", Question: "What is the principal or total financed amount?", Type: constants.FieldNumber},
		{Key: "term_months", Question: "What is the contract term, in months?", Type: constants.FieldInteger},
		{Key: "annual_interest_rate", Question: "What is the annual interest rate, in percent?", Type: constants.FieldNumber},
		{Key: "termination_penalty", Question: "Is there a penalty or fee for early termination or prepayment?", Type: constants.FieldTernary},
		{Key: "credit_limit_conditions", Question: "Under what conditions can the credit limit be changed?", Type: constants.FieldText},
		{Key: "revolving_interest_rate", Question: "What is the monthly revolving credit interest rate, in percent?", Type: constants.FieldNumber},
		{Key: "annual_fee", Question: "What is the annual fee amount?", Type: constants.FieldNumber},
		{Key: "cancellation_terms", Question: "How can the customer cancel the contract, and with how much notice?", Type: constants.FieldText},
	}
}
