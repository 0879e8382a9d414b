package pakasir

// Method is one entry of the payment method catalogue.
type Method struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var methods = []Method{
	{"qris", "QRIS"},
	{"bni_va", "BNI Virtual Account"},
	{"bri_va", "BRI Virtual Account"},
	{"cimb_niaga_va", "CIMB Niaga Virtual Account"},
	{"sampoerna_va", "Sampoerna Virtual Account"},
	{"bnc_va", "BNC Virtual Account"},
	{"maybank_va", "Maybank Virtual Account"},
	{"permata_va", "Permata Virtual Account"},
	{"atm_bersama_va", "ATM Bersama Virtual Account"},
}

var methodNames = func() map[string]string {
	m := make(map[string]string, len(methods))
	for _, method := range methods {
		m[method.Code] = method.Name
	}
	return m
}()

// Methods returns the supported payment methods in display order.
func Methods() []Method {
	return append([]Method(nil), methods...)
}

func ValidMethod(code string) bool {
	_, ok := methodNames[code]
	return ok
}

// MethodName returns the display name, or the code itself when unknown.
func MethodName(code string) string {
	if name, ok := methodNames[code]; ok {
		return name
	}
	return code
}
