package enums

// AssetKind classifies generated business assets.
type AssetKind string

const (
	AssetKindLogo           AssetKind = "logo"
	AssetKindBusinessPlan   AssetKind = "business_plan"
	AssetKindQRCode         AssetKind = "qr_code"
	AssetKindEmailSignature AssetKind = "email_signature"
	AssetKindWebsiteContent AssetKind = "website_content"
)

var assetKinds = newSet("asset kind",
	AssetKindLogo, AssetKindBusinessPlan, AssetKindQRCode, AssetKindEmailSignature, AssetKindWebsiteContent,
)

func (k AssetKind) String() string { return string(k) }

func (k AssetKind) IsValid() bool { return assetKinds.has(k) }

func ParseAssetKind(value string) (AssetKind, error) { return assetKinds.parse(value) }
