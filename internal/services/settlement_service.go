package services

import (
	"encoding/xml"
	"fmt"
	"log"
	"time"

	"github.com/aManDev200/Banking-Apis/internal/models"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/spf13/viper"
)

// SettlementService converts initiated ACH transfers into ISO 20022 pacs.008
// credit-transfer messages for the clearing network. Submission is
// best-effort and runs after the ledger commit; a failure here never unwinds
// the already-applied charge.
type SettlementService struct {
	currency string
	bankID   string
}

func NewSettlementService() *SettlementService {
	viper.SetDefault("settlement.currency", "USD")
	viper.SetDefault("settlement.bank_id", "BANKAPIS")

	return &SettlementService{
		currency: viper.GetString("settlement.currency"),
		bankID:   viper.GetString("settlement.bank_id"),
	}
}

// CreatePacs008 builds the FIToFICustomerCreditTransfer message for an
// initiated transfer.
func (ss *SettlementService) CreatePacs008(ach *models.ACHTransaction) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	msgID := uuid.New().String()
	creDtTm := time.Now()
	settlementDate := time.Now()
	txID := fmt.Sprintf("ACH-%d", ach.ID)
	amount := ach.Amount.InexactFloat64()
	debtor := fmt.Sprintf("%s-%d", ach.LinkedAccountType, ach.LinkedAccountID)
	creditor := ach.Purpose
	if creditor == "" {
		creditor = "ACH transfer"
	}

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(ss.currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(txID)}[0],
					EndToEndId: common.Max35Text(msgID),
					TxId:       &[]common.Max35Text{common.Max35Text(txID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(ss.currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(ss.bankID)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(debtor)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(creditor)}[0],
				},
			},
		},
	}

	return doc, nil
}

// Submit marshals the message and hands it to the settlement system.
func (ss *SettlementService) Submit(ach *models.ACHTransaction) error {
	doc, err := ss.CreatePacs008(ach)
	if err != nil {
		return fmt.Errorf("failed to build pacs.008: %w", err)
	}

	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal XML: %w", err)
	}

	// TODO: replace log handoff with the clearing network transport once
	// the settlement endpoint is provisioned.
	log.Printf("[SETTLEMENT] Submitting pacs.008 for ACH %d: %d bytes", ach.ID, len(xmlData))
	return nil
}
