package config

// Tracked instrument lists used when the YAML file leaves a dataset empty.
const (
	NasdaqSymbols = "AAPL,MSFT,NVDA,GOOGL,AMZN,META,TSLA,AVGO,PEP,COST,CSCO,TMUS,ADBE,NFLX,AMD,INTC,QCOM,SBUX,AMGN,ISRG,TXN,HON,BKNG,GILD,ADP,MDLZ,REGN,VRTX,LRCX,ADI"
	NYSESymbols   = "JPM,V,WMT,PG,JNJ,MA,HD,BAC,XOM,CVX,KO,LLY,DIS,MCD,PFE,ABBV,MRK,ORCL,CRM,ACN,T,VZ,NKE,IBM,GE,GS,CAT,MMM,BA,C"

	// BISTSymbols is the Borsa Istanbul list fetched from the equity quote
	// provider when the regional exchange API is unavailable.
	BISTSymbols = "THYAO.IS,GARAN.IS,AKBNK.IS,KCHOL.IS,SAHOL.IS,TUPRS.IS,ASELS.IS,BIMAS.IS,EREGL.IS,SISE.IS,YKBNK.IS,VAKBN.IS,PETKM.IS,TCELL.IS,FROTO.IS,EKGYO.IS,HALKB.IS,ARCLK.IS,TOASO.IS,TTKOM.IS,ISCTR.IS,SASA.IS,HEKTS.IS,KOZAL.IS,MGROS.IS"

	PennyStocks = "SNDL,ZOM,CTXR,NAKD,GSAT,DNN,ASRT,IDEX,FCEL,OCGN"
)
