package domain

const (
	// USDC mints
	USDC_MINT_MAINNET = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDC_MINT_DEVNET  = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"

	// USDC_DECIMALS is the number of minor units per token unit exponent (1 USDC = 10^6 units)
	USDC_DECIMALS = 6

	// BASIS_POINTS_DENOMINATOR is the basis-point value of 100%
	BASIS_POINTS_DENOMINATOR = 10000

	// DEFAULT_PLATFORM_ADDRESS is the platform treasury wallet used when none is configured
	DEFAULT_PLATFORM_ADDRESS = "HN7cABqLq46Es1jh92dQQisAq662SmxELLLsHHe4YWrH"

	// Explorer
	EXPLORER_BASE_URL = "https://explorer.solana.com"

	// Order ledger values
	PAYMENT_METHOD_SOLANA_USDC = "solana_usdc"
	CURRENCY_CODE_USDC         = "USDC"
	DEFAULT_LICENSE_TYPE       = "basic"
)
